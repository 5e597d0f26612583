// Package scheduler provides the optional long-running form of the
// scraper: an in-process cron that triggers one append per schedule tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// RunFunc executes one complete append run.
type RunFunc func(ctx context.Context) error

// Scheduler manages the cron task and guarantees appends never overlap.
type Scheduler struct {
	cron   *cron.Cron
	run    RunFunc
	logger *slog.Logger
	ctx    context.Context
	// mu makes the locate-through-persist span single-flight. An
	// overlapping trigger would compute a row index that is stale by the
	// time it persists, losing an update, so it is skipped outright rather
	// than queued.
	mu sync.Mutex
}

// New creates a Scheduler around one append run function.
func New(ctx context.Context, run RunFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		run:    run,
		logger: logger,
		ctx:    ctx,
	}
}

// Register adds the append task under the given six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.trigger); err != nil {
		return fmt.Errorf("register append task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// TriggerNow executes the append immediately, with the same overlap
// protection as a scheduled tick.
func (s *Scheduler) TriggerNow() {
	s.trigger()
}

func (s *Scheduler) trigger() {
	if !s.mu.TryLock() {
		s.logger.Warn("append already in progress, skipping trigger")
		return
	}
	defer s.mu.Unlock()

	if err := s.run(s.ctx); err != nil {
		s.logger.Error("scheduled append failed", slog.String("error", err.Error()))
	}
}
