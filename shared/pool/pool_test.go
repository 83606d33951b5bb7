package pool

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	_, err := New(context.Background(), Config{Name: "touch", Size: 0}, testLogger())
	require.Error(t, err)
}

func TestPool_SubmitRunsTask(t *testing.T) {
	p, err := New(context.Background(), Config{Name: "touch", Size: 2, Nonblocking: true}, testLogger())
	require.NoError(t, err)
	defer p.Shutdown(time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(func(ctx context.Context) {
		defer wg.Done()
		assert.NoError(t, ctx.Err())
	}))
	wg.Wait()
}

func TestPool_NonblockingOverflow(t *testing.T) {
	p, err := New(context.Background(), Config{Name: "touch", Size: 1, Nonblocking: true}, testLogger())
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	err = p.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrPoolFull)

	close(release)
	p.Shutdown(time.Second)

	err = p.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_PanicIsRecovered(t *testing.T) {
	p, err := New(context.Background(), Config{Name: "touch", Size: 1}, testLogger())
	require.NoError(t, err)
	defer p.Shutdown(time.Second)

	require.NoError(t, p.Submit(func(ctx context.Context) { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stopped running tasks after a panic")
	}
}

func TestPool_ShutdownLetsRunningTasksFinish(t *testing.T) {
	p, err := New(context.Background(), Config{Name: "touch", Size: 1, Nonblocking: true}, testLogger())
	require.NoError(t, err)

	started := make(chan struct{})
	result := make(chan error, 1)
	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		result <- ctx.Err()
	}))
	<-started

	p.Shutdown(time.Second)

	select {
	case err := <-result:
		assert.NoError(t, err)
	default:
		t.Fatal("shutdown returned before the running task finished")
	}
}

func TestPool_ShutdownCancelsStragglers(t *testing.T) {
	p, err := New(context.Background(), Config{Name: "touch", Size: 1, Nonblocking: true}, testLogger())
	require.NoError(t, err)

	started := make(chan struct{})
	result := make(chan error, 1)
	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		result <- ctx.Err()
	}))
	<-started

	p.Shutdown(50 * time.Millisecond)

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("task was not cancelled after the shutdown timeout")
	}
}
