package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter keeps a fixed-window count per identifier in process memory,
// with the same window boundaries as the SQL and Redis backends.
// It suits single-instance deployments and tests.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	idleTTL time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

func NewMemoryCounter(idleTTL time.Duration) *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Check counts one call in the window containing now, aligned to the Unix
// epoch, and allows it while the count is within limit.
func (m *MemoryCounter) Check(_ context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}

	now := m.now()
	start := time.Unix(0, now.UnixNano()/int64(window)*int64(window))

	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[identifier]
	if !ok {
		ent = &memoryEntry{windowStart: start}
		m.entries[identifier] = ent
	} else if !ent.windowStart.Equal(start) {
		ent.windowStart = start
		ent.count = 0
	}
	ent.count++
	ent.lastSeen = now

	return ent.count <= limit, nil
}

// Cleanup drops identifiers idle for longer than idleTTL.
func (m *MemoryCounter) Cleanup() {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, ent := range m.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(m.entries, k)
		}
	}
}

// Len returns the number of tracked identifiers.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (m *MemoryCounter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Cleanup()
			}
		}
	}()
}
