// Package ratelimit decides whether a caller may perform an action, backed by
// a pluggable windowed counter.
package ratelimit

import (
	"context"
	"time"
)

// Counter records one hit for identifier and reports whether it is within
// limit for the current window.
type Counter interface {
	Check(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error)
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error)

func (f CounterFunc) Check(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	return f(ctx, identifier, limit, window)
}
