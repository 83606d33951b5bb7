// Package scheduler runs periodic maintenance for worker-service.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes finished rate windows. Implemented by *storage.Storage.
type Purger interface {
	PurgeRateLimits(ctx context.Context, olderThan time.Time) (int64, error)
}

// Scheduler wraps robfig/cron and owns the rate window purge job.
type Scheduler struct {
	cron      *cron.Cron
	purger    Purger
	spec      string
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Scheduler that purges windows older than retention on spec,
// e.g. "@every 10m".
func New(purger Purger, spec string, retention, timeout time.Duration, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger.With(slog.String("component", "scheduler"))}

	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		purger:    purger,
		spec:      spec,
		retention: retention,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the purge job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.purge(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		slog.String("spec", s.spec),
		slog.Duration("retention", s.retention),
	)

	return nil
}

// Stop halts the scheduler and waits for a running purge, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

func (s *Scheduler) purge(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cutoff := s.now().Add(-s.retention).UTC()
	deleted, err := s.purger.PurgeRateLimits(ctx, cutoff)
	if err != nil {
		s.logger.Error("Rate limit purge failed", slog.Any("error", err))
		return
	}

	s.logger.Info("Rate limit purge complete",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff),
	)
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
