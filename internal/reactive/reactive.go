// Package reactive provides observable cells and eagerly recomputed derived
// values. Nothing here is safe for concurrent use: all reads, writes and
// notifications are expected to happen on the single event-loop goroutine.
package reactive

// Unsubscribe detaches a previously registered subscriber. Calling it more
// than once is a no-op.
type Unsubscribe func()

type subscriber[T any] struct {
	fn      func(T)
	removed bool
}

// subscribers is an ordered subscriber list. Notification walks a snapshot, so
// subscribers may subscribe or unsubscribe while being notified.
type subscribers[T any] struct {
	list []*subscriber[T]
}

func (s *subscribers[T]) add(fn func(T)) Unsubscribe {
	sub := &subscriber[T]{fn: fn}
	s.list = append(s.list, sub)
	return func() {
		if sub.removed {
			return
		}
		sub.removed = true
		for i, other := range s.list {
			if other == sub {
				s.list = append(s.list[:i:i], s.list[i+1:]...)
				break
			}
		}
	}
}

func (s *subscribers[T]) notify(v T) {
	snapshot := s.list
	for _, sub := range snapshot {
		if sub.removed {
			continue
		}
		sub.fn(v)
	}
}

func (s *subscribers[T]) len() int {
	return len(s.list)
}

// Cell is a mutable observable value.
//
// Every Set notifies all subscribers, including when the new value equals the
// old one. Re-assigning a cell to its own value is how callers force
// dependents to refresh.
type Cell[T any] struct {
	value T
	subs  subscribers[T]
}

// NewCell creates a Cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	return c.value
}

// Set stores v and synchronously notifies subscribers in registration order.
func (c *Cell[T]) Set(v T) {
	c.value = v
	c.subs.notify(v)
}

// Subscribe registers fn to be called with the new value after every Set.
func (c *Cell[T]) Subscribe(fn func(T)) Unsubscribe {
	return c.subs.add(fn)
}

// Subscribers returns the number of registered subscribers.
func (c *Cell[T]) Subscribers() int {
	return c.subs.len()
}

// Computed is a derived value. It is recomputed from scratch each time one of
// its sources changes and never caches across writes.
type Computed[T any] struct {
	compute func() T
	value   T
	subs    subscribers[T]
}

// NewComputed creates a derived value and computes it once.
func NewComputed[T any](compute func() T) *Computed[T] {
	c := &Computed[T]{compute: compute}
	c.value = compute()
	return c
}

// Get returns the value produced by the last recomputation.
func (c *Computed[T]) Get() T {
	return c.value
}

// Recompute re-evaluates the derived value and notifies subscribers.
func (c *Computed[T]) Recompute() {
	c.value = c.compute()
	c.subs.notify(c.value)
}

// Subscribe registers fn to be called after every recomputation.
func (c *Computed[T]) Subscribe(fn func(T)) Unsubscribe {
	return c.subs.add(fn)
}

// DependOn recomputes c whenever src is written.
func DependOn[S, T any](c *Computed[T], src *Cell[S]) Unsubscribe {
	return src.Subscribe(func(S) { c.Recompute() })
}
