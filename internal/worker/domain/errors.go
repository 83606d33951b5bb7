package domain

import "errors"

var (
	// ErrInvalidPayload is returned when a message body cannot be decoded or fails validation
	ErrInvalidPayload = errors.New("invalid message payload")

	// ErrUnsupportedType is returned for message types the worker has no handler for
	ErrUnsupportedType = errors.New("unsupported message type")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
