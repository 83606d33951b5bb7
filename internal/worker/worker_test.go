package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/open-job-board/internal/events"
	"github.com/cuongbtq/open-job-board/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type applyCall struct {
	id     string
	usedAt time.Time
}

type fakeStore struct {
	mu    sync.Mutex
	calls []applyCall
	err   error
}

func (s *fakeStore) ApplyLastUsed(_ context.Context, id string, usedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, applyCall{id: id, usedAt: usedAt})
	return s.err == nil, s.err
}

type settlement struct {
	tag     uint64
	ack     bool
	requeue bool
}

// fakeAcknowledger records what the worker did with each delivery
type fakeAcknowledger struct {
	mu      sync.Mutex
	settled []settlement
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settled = append(a.settled, settlement{tag: tag, ack: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settled = append(a.settled, settlement{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) snapshot() []settlement {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]settlement(nil), a.settled...)
}

type fakeSource struct {
	ch  chan amqp.Delivery
	err error
}

func (s *fakeSource) Consume(string) (<-chan amqp.Delivery, error) {
	return s.ch, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func usedBody(t *testing.T, id string, at time.Time) []byte {
	t.Helper()
	b, err := json.Marshal(events.APIKeyUsed{CredentialID: id, UsedAt: at})
	require.NoError(t, err)
	return b
}

func newTestWorker(store Store, source Source) *Worker {
	return NewWorker(&Config{
		Logger:      discard(),
		Store:       store,
		Source:      source,
		QueueName:   "apikey-events",
		Concurrency: 2,
		JobTimeout:  time.Second,
	})
}

func TestProcessMessage(t *testing.T) {
	id := uuid.NewString()
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name     string
		msgType  string
		body     []byte
		storeErr error
		wantErr  error
		wantCall bool
	}{
		{
			name:     "applies usage in UTC",
			msgType:  events.TypeAPIKeyUsed,
			body:     usedBody(t, id, at),
			wantCall: true,
		},
		{
			name:    "malformed JSON",
			msgType: events.TypeAPIKeyUsed,
			body:    []byte(`{"credential_id":`),
			wantErr: domain.ErrInvalidPayload,
		},
		{
			name:    "credential id is not a UUID",
			msgType: events.TypeAPIKeyUsed,
			body:    usedBody(t, "key-1", at),
			wantErr: domain.ErrInvalidPayload,
		},
		{
			name:    "missing used_at",
			msgType: events.TypeAPIKeyUsed,
			body:    []byte(`{"credential_id":"` + id + `"}`),
			wantErr: domain.ErrInvalidPayload,
		},
		{
			name:    "unknown type",
			msgType: "job.created",
			body:    []byte(`{}`),
			wantErr: domain.ErrUnsupportedType,
		},
		{
			name:     "database failure is retryable",
			msgType:  events.TypeAPIKeyUsed,
			body:     usedBody(t, id, at),
			storeErr: errors.New("connection reset"),
			wantCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{err: tt.storeErr}
			w := newTestWorker(store, nil)

			err := w.processMessage(context.Background(), &domain.Message{Type: tt.msgType, Body: tt.body})

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.storeErr != nil:
				var retryable *domain.RetryableError
				assert.ErrorAs(t, err, &retryable)
			default:
				assert.NoError(t, err)
			}

			if !tt.wantCall {
				assert.Empty(t, store.calls)
				return
			}
			require.Len(t, store.calls, 1)
			assert.Equal(t, id, store.calls[0].id)
			assert.True(t, at.Equal(store.calls[0].usedAt))
			assert.Equal(t, time.UTC, store.calls[0].usedAt.Location())
		})
	}
}

func TestShouldRequeue(t *testing.T) {
	retryable := domain.NewRetryableError(errors.New("timeout"))

	assert.True(t, shouldRequeue(&domain.Message{}, retryable))
	assert.False(t, shouldRequeue(&domain.Message{Redelivered: true}, retryable))
	assert.False(t, shouldRequeue(&domain.Message{}, domain.ErrInvalidPayload))
	assert.False(t, shouldRequeue(&domain.Message{}, domain.ErrUnsupportedType))
	assert.False(t, shouldRequeue(&domain.Message{}, errors.New("unknown")))
}

func TestWorker_SettlesDeliveries(t *testing.T) {
	defer goleak.VerifyNone(t)

	ack := &fakeAcknowledger{}
	source := &fakeSource{ch: make(chan amqp.Delivery)}
	store := &fakeStore{}
	w := newTestWorker(store, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	deliver := func(tag uint64, msgType string, body []byte) {
		source.ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Type: msgType, Body: body}
	}
	deliver(1, events.TypeAPIKeyUsed, usedBody(t, uuid.NewString(), time.Now()))
	deliver(2, events.TypeAPIKeyUsed, []byte(`not json`))
	deliver(3, "unknown", []byte(`{}`))

	require.Eventually(t, func() bool { return len(ack.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	w.Stop()

	assert.ElementsMatch(t, []settlement{
		{tag: 1, ack: true},
		{tag: 2, requeue: false},
		{tag: 3, requeue: false},
	}, ack.snapshot())
}

func TestWorker_RequeuesTransientFailureOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	ack := &fakeAcknowledger{}
	source := &fakeSource{ch: make(chan amqp.Delivery)}
	store := &fakeStore{err: errors.New("connection reset")}
	w := newTestWorker(store, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	body := usedBody(t, uuid.NewString(), time.Now())
	source.ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Type: events.TypeAPIKeyUsed, Body: body}
	source.ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Type: events.TypeAPIKeyUsed, Body: body, Redelivered: true}

	require.Eventually(t, func() bool { return len(ack.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	w.Stop()

	assert.ElementsMatch(t, []settlement{
		{tag: 1, requeue: true},
		{tag: 2, requeue: false},
	}, ack.snapshot())
}

func TestWorker_StartFailsWhenConsumeFails(t *testing.T) {
	w := newTestWorker(&fakeStore{}, &fakeSource{err: errors.New("channel closed")})

	err := w.Start(context.Background())

	assert.ErrorContains(t, err, "failed to start consuming")
}

func TestWorker_ReturnsWhenDeliveriesClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := &fakeSource{ch: make(chan amqp.Delivery)}
	w := newTestWorker(&fakeStore{}, source)
	close(source.ch)

	err := w.Start(context.Background())
	w.Stop()

	assert.ErrorIs(t, err, ErrDeliveriesClosed)
}
