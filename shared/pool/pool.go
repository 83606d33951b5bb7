// Package pool wraps an ants goroutine pool for short background tasks.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrPoolFull is returned by Submit when every worker is busy.
var ErrPoolFull = errors.New("worker pool is full")

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task receives the pool's lifecycle context.
type Task func(ctx context.Context)

// Config holds pool configuration
type Config struct {
	Name        string
	Size        int
	Nonblocking bool
	IdleExpiry  time.Duration
}

// Pool runs detached tasks bounded by Size workers.
type Pool struct {
	pool   *ants.Pool
	name   string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a pool whose tasks observe ctx until Shutdown is called.
func New(ctx context.Context, config Config, logger *slog.Logger) (*Pool, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", config.Size)
	}

	expiry := config.IdleExpiry
	if expiry <= 0 {
		expiry = 10 * time.Second
	}

	poolLogger := logger.With(slog.String("pool", config.Name))

	panicHandler := func(p any) {
		poolLogger.Error("Worker panic recovered",
			slog.Any("panic", p),
			slog.String("stack", string(debug.Stack())),
		)
	}

	ap, err := ants.NewPool(config.Size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithExpiryDuration(expiry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &Pool{
		pool:   ap,
		name:   config.Name,
		logger: poolLogger,
		ctx:    poolCtx,
		cancel: cancel,
	}, nil
}

// Submit schedules task. In nonblocking mode it returns ErrPoolFull instead of waiting.
func (p *Pool) Submit(task Task) error {
	err := p.pool.Submit(func() {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Task skipped: pool shutting down")
			return
		default:
		}
		task(p.ctx)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrPoolFull
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return err
	}
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Shutdown stops accepting tasks and waits up to timeout for running ones
// to finish under a live context. Tasks still running after that see their
// context cancelled.
func (p *Pool) Shutdown(timeout time.Duration) {
	defer p.cancel()

	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("Worker pool shutdown timeout", slog.Any("error", err))
	}
}
