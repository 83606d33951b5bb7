package touch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/open-job-board/internal/events"
	"github.com/cuongbtq/open-job-board/shared/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inlinePool runs tasks synchronously so tests observe their effects.
type inlinePool struct {
	err error
}

func (p inlinePool) Submit(task pool.Task) error {
	if p.err != nil {
		return p.err
	}
	task(context.Background())
	return nil
}

type fakeStore struct {
	mu     sync.Mutex
	id     string
	usedAt time.Time
	err    error
}

func (s *fakeStore) TouchCredential(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id, s.usedAt = id, usedAt
	return s.err
}

type fakePublisher struct {
	msgType string
	body    []byte
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, msgType string, body []byte) error {
	p.msgType, p.body = msgType, body
	return p.err
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestDirectToucher(t *testing.T) {
	var logs bytes.Buffer
	store := &fakeStore{}
	toucher := NewDirectToucher(inlinePool{}, store, time.Second, testLogger(&logs))
	toucher.now = func() time.Time { return fixedNow }

	toucher.Touch("cred-1")

	assert.Equal(t, "cred-1", store.id)
	assert.Equal(t, fixedNow, store.usedAt)
	assert.Empty(t, logs.String())
}

func TestDirectToucher_StoreErrorIsSwallowed(t *testing.T) {
	var logs bytes.Buffer
	store := &fakeStore{err: errors.New("db down")}
	toucher := NewDirectToucher(inlinePool{}, store, time.Second, testLogger(&logs))

	assert.NotPanics(t, func() { toucher.Touch("cred-1") })
	assert.Contains(t, logs.String(), "Failed to record credential use")
}

func TestDirectToucher_RepeatedFailuresLoggedOnce(t *testing.T) {
	var logs bytes.Buffer
	store := &fakeStore{err: errors.New("db down")}
	toucher := NewDirectToucher(inlinePool{}, store, time.Second, testLogger(&logs))

	for i := 0; i < 5; i++ {
		toucher.Touch("cred-1")
	}

	assert.Equal(t, 1, strings.Count(logs.String(), "Failed to record credential use"))
}

func TestDirectToucher_FullPoolDropsTouch(t *testing.T) {
	var logs bytes.Buffer
	store := &fakeStore{}
	toucher := NewDirectToucher(inlinePool{err: pool.ErrPoolFull}, store, time.Second, testLogger(&logs))

	toucher.Touch("cred-1")

	assert.Empty(t, store.id)
	assert.Contains(t, logs.String(), "Credential touch dropped")
}

func TestQueueToucher(t *testing.T) {
	var logs bytes.Buffer
	pub := &fakePublisher{}
	toucher := NewQueueToucher(inlinePool{}, pub, time.Second, testLogger(&logs))
	toucher.now = func() time.Time { return fixedNow }

	toucher.Touch("0190a5b0-7f3e-7c1a-9d2b-3c4d5e6f7a8b")

	assert.Equal(t, events.TypeAPIKeyUsed, pub.msgType)

	var ev events.APIKeyUsed
	require.NoError(t, json.Unmarshal(pub.body, &ev))
	assert.Equal(t, "0190a5b0-7f3e-7c1a-9d2b-3c4d5e6f7a8b", ev.CredentialID)
	assert.True(t, fixedNow.Equal(ev.UsedAt))
	assert.NoError(t, ev.Validate())
}

func TestQueueToucher_PublishErrorIsSwallowed(t *testing.T) {
	var logs bytes.Buffer
	toucher := NewQueueToucher(inlinePool{}, &fakePublisher{err: errors.New("broker down")}, time.Second, testLogger(&logs))

	toucher.Touch("cred-1")

	assert.Contains(t, logs.String(), "broker down")
}

func TestToucher_WithRealPool(t *testing.T) {
	p, err := pool.New(context.Background(), pool.Config{Name: "touch", Size: 2, Nonblocking: true}, slog.Default())
	require.NoError(t, err)

	store := &fakeStore{}
	toucher := NewDirectToucher(p, store, time.Second, slog.Default())
	defer p.Shutdown(time.Second)

	toucher.Touch("cred-9")

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.id == "cred-9"
	}, time.Second, 5*time.Millisecond)
}
