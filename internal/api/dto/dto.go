package dto

import (
	"time"

	"github.com/cuongbtq/open-job-board/internal/validation"
)

// CreateAPIKeyRequest is the body of POST /create-api-key
type CreateAPIKeyRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Email string `json:"email" validate:"required,email,max=320"`
}

type CreateAPIKeyResponse struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	RateLimit int    `json:"rate_limit"`
	Message   string `json:"message"`
}

type SubmitJobResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type ProbeResponse struct {
	Status   string `json:"status"`
	Endpoint string `json:"endpoint"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details,omitempty"`
}
