// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/jobpipe/internal/model"
)

// RunFunc is one scheduled unit of work.
type RunFunc func(ctx context.Context) error

// Scheduler wraps robfig/cron and owns the run loop.
type Scheduler struct {
	spec   string
	run    RunFunc
	logger *slog.Logger
	runs   atomic.Int64
}

// New creates a scheduler for a standard cron spec or a descriptor such as
// "@every 30m".
func New(spec string, run RunFunc, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, model.Configurationf("schedule %q: %v", spec, err)
	}
	return &Scheduler{spec: spec, run: run, logger: logger}, nil
}

// Runs returns how many runs have finished.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Run runs once immediately, then on every tick of the schedule. A tick that
// fires while the previous run is still going is skipped. It returns nil when
// ctx is cancelled, after the in-flight run has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{s.logger}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)), cron.WithLogger(logger))
	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.logger.Info("starting scheduler", "schedule", s.spec)

	// Run one immediate cycle so the store is populated without waiting for the first tick.
	s.tick(ctx)

	c.Start()
	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer s.runs.Add(1)
	if err := s.run(ctx); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
