// Package touch records credential use off the request path.
package touch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cuongbtq/open-job-board/internal/events"
	"github.com/cuongbtq/open-job-board/shared/pool"
	"golang.org/x/time/rate"
)

// failureLogInterval bounds how often a failing store or broker is reported
const failureLogInterval = 10 * time.Second

// Submitter runs a task in the background. Implemented by *pool.Pool.
type Submitter interface {
	Submit(task pool.Task) error
}

// Store persists last_used directly.
type Store interface {
	TouchCredential(ctx context.Context, credentialID string, usedAt time.Time) error
}

// Publisher hands events to the broker. Implemented by *rabbitmq.Client.
type Publisher interface {
	Publish(ctx context.Context, messageType string, body []byte) error
}

type base struct {
	pool    Submitter
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	// failures are logged at most once per failureLogInterval
	failureLog *rate.Sometimes
}

func newBase(p Submitter, timeout time.Duration, logger *slog.Logger) base {
	return base{
		pool:       p,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
		failureLog: &rate.Sometimes{First: 1, Interval: failureLogInterval},
	}
}

// dispatch runs fn on the pool with a bounded context. Failures are logged
// and dropped: a touch never affects the request that triggered it.
func (b *base) dispatch(credentialID string, fn func(ctx context.Context, usedAt time.Time) error) {
	usedAt := b.now().UTC()

	err := b.pool.Submit(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()

		if err := fn(ctx, usedAt); err != nil {
			b.failureLog.Do(func() {
				b.logger.Warn("Failed to record credential use",
					slog.String("credential_id", credentialID),
					slog.Any("error", err),
				)
			})
		}
	})
	if err != nil {
		b.logger.Debug("Credential touch dropped",
			slog.String("credential_id", credentialID),
			slog.Any("error", err),
		)
	}
}

// DirectToucher updates api_keys.last_used from the api-service itself.
type DirectToucher struct {
	base
	store Store
}

func NewDirectToucher(p Submitter, store Store, timeout time.Duration, logger *slog.Logger) *DirectToucher {
	return &DirectToucher{
		base:  newBase(p, timeout, logger),
		store: store,
	}
}

func (t *DirectToucher) Touch(credentialID string) {
	t.dispatch(credentialID, func(ctx context.Context, usedAt time.Time) error {
		return t.store.TouchCredential(ctx, credentialID, usedAt)
	})
}

// QueueToucher publishes an apikey.used event for worker-service to apply.
type QueueToucher struct {
	base
	publisher Publisher
}

func NewQueueToucher(p Submitter, publisher Publisher, timeout time.Duration, logger *slog.Logger) *QueueToucher {
	return &QueueToucher{
		base:      newBase(p, timeout, logger),
		publisher: publisher,
	}
}

func (t *QueueToucher) Touch(credentialID string) {
	t.dispatch(credentialID, func(ctx context.Context, usedAt time.Time) error {
		body, err := json.Marshal(events.APIKeyUsed{CredentialID: credentialID, UsedAt: usedAt})
		if err != nil {
			return err
		}
		return t.publisher.Publish(ctx, events.TypeAPIKeyUsed, body)
	})
}
