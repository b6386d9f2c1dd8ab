package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/photomap/photomap/internal/model"
)

// StatusFile is written into Dir on every tick.
const StatusFile = "status.txt"

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Snapshot func() model.Snapshot
	Pending  func() int // queued event loop tasks
	Logger   *slog.Logger
	Dir      string
	Interval time.Duration
}

// Status is one rendering of the program state.
type Status struct {
	Time         time.Time `json:"time"`
	Center       string    `json:"center"`
	Images       int       `json:"images"`
	Hidden       int       `json:"hidden"`
	Filter       string    `json:"filter"`
	Summary      string    `json:"summary"`
	Notification string    `json:"notification"`
	Message      string    `json:"message,omitempty"`
	QueueLength  int       `json:"queueLength"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status and its rendered lines.
func (s *Service) GetProgramStatus() (output []string, status Status) {
	snap := s.deps.Snapshot()
	status = Status{
		Time:         time.Now().UTC(),
		Center:       snap.CenterText,
		Images:       snap.Total,
		Hidden:       snap.Hidden,
		Filter:       snap.Filter,
		Summary:      snap.Summary,
		Notification: snap.Notification.Status.String(),
		Message:      snap.Notification.Message,
	}
	if s.deps.Pending != nil {
		status.QueueLength = s.deps.Pending()
	}

	statusStr, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		statusStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	output = append(output, string(statusStr))
	return output, status
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "dir", s.deps.Dir)

		path := filepath.Join(s.deps.Dir, StatusFile)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				lines, _ := s.GetProgramStatus()
				if err := writeLines(path, lines); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the status monitor and waits for its goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
