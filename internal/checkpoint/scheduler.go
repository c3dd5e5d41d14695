// Package checkpoint persists the ledger periodically on a cron schedule.
package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/davidbz/tokenledger/internal/observability"
)

// Persister writes the ledger to a target.
type Persister interface {
	Persist(ctx context.Context, target string) error
}

// Scheduler runs Persist on a cron schedule (e.g. "*/5 * * * *").
type Scheduler struct {
	persister Persister
	schedule  string
	target    string

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a checkpoint scheduler. An empty schedule disables it.
func NewScheduler(persister Persister, schedule, target string) *Scheduler {
	return &Scheduler{
		persister: persister,
		schedule:  schedule,
		target:    target,
	}
}

// Start schedules checkpoints until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := observability.FromContext(ctx)

	if s.schedule == "" {
		logger.Info("checkpoint schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	// A fresh cron per start keeps a restarted scheduler at one job.
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		_ = s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule checkpoint: %w", err)
	}

	s.cron.Start()
	s.running = true

	logger.Info("checkpoint scheduler started",
		observability.String("schedule", s.schedule),
		observability.String("target", s.target))

	started := s.cron
	go func() {
		<-ctx.Done()
		s.stop(started)
	}()

	return nil
}

// RunOnce persists the ledger immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	logger := observability.FromContext(ctx)
	started := time.Now()

	if err := s.persister.Persist(ctx, s.target); err != nil {
		logger.Error("checkpoint failed",
			observability.String("target", s.target),
			observability.Error(err))
		return err
	}

	logger.Debug("checkpoint written",
		observability.String("target", s.target),
		observability.Duration("duration", time.Since(started)))

	return nil
}

// Stop halts the schedule and waits for a running checkpoint to finish.
func (s *Scheduler) Stop() {
	s.stop(nil)
}

// stop halts the current cron, or only c when c is not nil, so a cancelled
// context from an earlier Start leaves a restarted scheduler alone.
func (s *Scheduler) stop(c *cron.Cron) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || (c != nil && c != s.cron) {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
}

// IsRunning reports whether checkpoints are scheduled.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return 0
	}
	return len(s.cron.Entries())
}

// NextRun returns the next scheduled checkpoint, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
