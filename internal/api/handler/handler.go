package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cuongbtq/open-job-board/internal/api/domain"
	"github.com/cuongbtq/open-job-board/internal/api/dto"
	"github.com/cuongbtq/open-job-board/internal/api/model"
	"github.com/cuongbtq/open-job-board/internal/config"
	"github.com/cuongbtq/open-job-board/internal/ratelimit"
	"github.com/cuongbtq/open-job-board/internal/validation"
	"github.com/cuongbtq/open-job-board/shared/logger"
	"github.com/gin-gonic/gin"
)

// User-facing error messages
const (
	msgInvalidJSON       = "Invalid JSON body"
	msgBodyTooLarge      = "Request body too large"
	msgValidationFailed  = "Validation failed"
	msgDuplicateJob      = "Duplicate job: this source + reference already exists."
	msgInternal          = "Internal server error"
	msgCreateKeyFailed   = "Failed to create API key"
	msgRateLimitedSubmit = "Rate limit exceeded. Retry after 60 seconds."
	msgRateLimitedKey    = "Rate limit exceeded. Try again later."
	msgMethodNotAllowed  = "Method not allowed"
)

// RateGate decides whether the caller may perform an action.
type RateGate interface {
	Check(ctx context.Context, header http.Header, p ratelimit.Policy) (ratelimit.Identity, error)
}

type CredentialStore interface {
	CreateCredential(ctx context.Context, cred *model.Credential) error
}

type JobStore interface {
	InsertJob(ctx context.Context, rec *model.JobRecord) error
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Gate        RateGate
	Credentials CredentialStore
	Jobs        JobStore
	Health      HealthChecker
	Validator   *validation.Validator

	CreateKeyPolicy    ratelimit.Policy
	SubmitJobPolicy    ratelimit.Policy
	DefaultKeyRequests int
	MaxBodyBytes       int64
}

// PoliciesFromConfig builds the per-action gate policies.
func PoliciesFromConfig(cfg *config.RateLimitConfig) (createKey, submitJob ratelimit.Policy) {
	createKey = ratelimit.Policy{
		Action:         domain.ActionCreateKey,
		AnonymousLimit: cfg.CreateKeyLimit,
		ScopeByAction:  true,
	}
	submitJob = ratelimit.Policy{
		Action:         domain.ActionSubmitJob,
		AnonymousLimit: cfg.SubmitJobLimit,
		AcceptKeys:     true,
	}
	return createKey, submitJob
}

// readDocument reads at most maxBytes of the body and parses it as JSON.
func readDocument(c *gin.Context, maxBytes int64) (any, error) {
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxBodyBytes
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrBodyTooLarge
		}
		return nil, errors.Join(domain.ErrInvalidJSON, err)
	}

	doc, err := validation.ParseJSON(body)
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidJSON, err)
	}

	return doc, nil
}

// writeError maps err onto a status code and JSON body. Collaborator
// failures are logged and answered with fallback.
func writeError(c *gin.Context, log *slog.Logger, err error, fallback string) {
	var (
		rateErr  *domain.RateLimitError
		validErr *validation.Error
	)

	switch {
	case errors.As(err, &rateErr):
		msg := msgRateLimitedSubmit
		if rateErr.Action == domain.ActionCreateKey {
			msg = msgRateLimitedKey
		}
		c.Header("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: msg})

	case errors.As(err, &validErr):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   msgValidationFailed,
			Details: validErr.Violations,
		})

	case errors.Is(err, domain.ErrBodyTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: msgBodyTooLarge})

	case errors.Is(err, domain.ErrInvalidJSON):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgInvalidJSON})

	case errors.Is(err, domain.ErrDuplicateJob):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: msgDuplicateJob})

	default:
		log.Error("Request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: fallback})
	}
}

// Probe answers GET on an endpoint.
func Probe(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.ProbeResponse{Status: "ok", Endpoint: endpoint})
	}
}

// MethodNotAllowed answers unsupported methods on known routes.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, dto.ErrorResponse{Error: msgMethodNotAllowed})
}

func requestLogger(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	return logger.FromContext(c.Request.Context(), fallback)
}
