package application

import (
	"context"
	"errors"
	"log"
	"time"
)

// DefaultRefreshInterval matches the upstream update cadence.
const DefaultRefreshInterval = 2 * time.Hour

// Scheduler triggers a full refresh once at startup and then on a fixed
// interval until the context is cancelled.
type Scheduler struct {
	controller *Controller
	interval   time.Duration
	logger     *log.Logger
}

// NewScheduler builds a Scheduler.
func NewScheduler(controller *Controller, interval time.Duration, logger *log.Logger) (*Scheduler, error) {
	if controller == nil {
		return nil, errors.New("scheduler: nil controller")
	}
	if logger == nil {
		return nil, errors.New("scheduler: nil logger")
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Scheduler{controller: controller, interval: interval, logger: logger}, nil
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	results, err := s.controller.RefreshAll(ctx)
	if err != nil {
		s.logger.Printf("scheduler: refresh failed: %v", err)
		return
	}
	ok := 0
	for _, r := range results {
		if !r.Skipped && r.Err == nil {
			ok++
		}
	}
	s.logger.Printf("scheduler: refresh done, %d/%d series imported", ok, len(results))
}
