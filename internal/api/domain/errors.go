package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidJSON is returned when the request body is not parseable JSON
	ErrInvalidJSON = errors.New("invalid JSON body")

	// ErrBodyTooLarge is returned when the request body exceeds the configured cap
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrDuplicateJob is returned when (source, reference) already exists
	ErrDuplicateJob = errors.New("duplicate job")

	// ErrCredentialNotFound is returned when no active credential matches a key hash
	ErrCredentialNotFound = errors.New("credential not found")
)

// RetryAfter is the fixed hint sent with every rate limit denial
const RetryAfter = 60 * time.Second

// RateLimitError reports a denied action
type RateLimitError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded for " + e.Action
}

// NewRateLimitError creates a denial with the default retry hint
func NewRateLimitError(action string) error {
	return &RateLimitError{Action: action, RetryAfter: RetryAfter}
}
