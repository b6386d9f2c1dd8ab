package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/photomap/photomap/internal/queue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrClosed is returned when dispatching to a closed dispatcher.
var ErrClosed = errors.New("dispatcher closed")

// Event represents an incoming event from the mapping widget.
type Event struct {
	Command   string
	Payload   json.RawMessage
	Timestamp time.Time
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Command)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: decoding payload: %w", e.Command, err)
	}
	return nil
}

// HandlerFunc processes an event on the event loop.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type task struct {
	name string
	fn   func()
}

// Dispatcher is the single logical thread of the program. Events and posted
// tasks from any goroutine are queued and run one at a time, in order, on the
// goroutine that calls Run.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	closed   bool
	done     chan struct{}

	tasks  *queue.Queue[task]
	logger Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		done:     make(chan struct{}),
		tasks:    queue.New[task](),
		logger:   logger,
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of tasks waiting for the event loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(d.queueSize, int64(d.tasks.Len()))
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total tasks run on the event loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total tasks dropped because the loop was closed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Dispatch queues an event for its handler. It returns immediately; handler
// errors are logged by the loop.
func (d *Dispatcher) Dispatch(e Event) error {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown command: %s", e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	return d.enqueue(e.Command, func() {
		if err := h(e); err != nil {
			d.logger.Error("event failed", "command", e.Command, "error", err)
		}
	})
}

// Post queues fn to run on the event loop. Tasks posted after Close are
// dropped.
func (d *Dispatcher) Post(fn func()) {
	if err := d.enqueue("post", fn); err != nil {
		d.logger.Debug("task dropped", "error", err)
	}
}

func (d *Dispatcher) enqueue(name string, fn func()) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		d.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", name)))
		return ErrClosed
	}
	d.tasks.Push(task{name: name, fn: fn})
	return nil
}

// Pending returns the number of queued tasks.
func (d *Dispatcher) Pending() int {
	return d.tasks.Len()
}

// Run executes queued tasks on the calling goroutine until ctx is done or
// Close is called. Tasks still queued at that point are discarded.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.done:
			return nil
		case <-d.tasks.Ready():
			for _, t := range d.tasks.Drain() {
				d.run(ctx, t)
			}
		}
	}
}

// RunPending executes the tasks queued so far, and any they queue in turn,
// on the calling goroutine.
func (d *Dispatcher) RunPending() {
	for {
		tasks := d.tasks.Drain()
		if len(tasks) == 0 {
			return
		}
		for _, t := range tasks {
			d.run(context.Background(), t)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("task panicked", "command", t.name, "panic", r)
		}
	}()
	t.fn()
	d.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("command", t.name)))
}

// Close stops Run. Further Dispatch and Post calls are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.done)
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "payload", len(e.Payload))

		err := h(e)

		d.logger.Debug("event complete", "command", command, "duration", time.Since(start), "ok", err == nil)

		return err
	}
}
