package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/open-job-board/internal/api/dto"
	"github.com/cuongbtq/open-job-board/internal/api/model"
	"github.com/cuongbtq/open-job-board/internal/apikey"
	"github.com/cuongbtq/open-job-board/internal/ratelimit"
	"github.com/cuongbtq/open-job-board/internal/validation"
	"github.com/gin-gonic/gin"
)

const keyIssuedMessage = "Save this key now — it will not be shown again."

// APIKeyHandler issues API keys
type APIKeyHandler struct {
	logger       *slog.Logger
	gate         RateGate
	credentials  CredentialStore
	validator    *validation.Validator
	policy       ratelimit.Policy
	defaultLimit int
	maxBodyBytes int64
	generateKey  func() (string, error)
}

func NewAPIKeyHandler(deps *Dependencies) *APIKeyHandler {
	return &APIKeyHandler{
		logger:       deps.Logger,
		gate:         deps.Gate,
		credentials:  deps.Credentials,
		validator:    deps.Validator,
		policy:       deps.CreateKeyPolicy,
		defaultLimit: deps.DefaultKeyRequests,
		maxBodyBytes: deps.MaxBodyBytes,
		generateKey:  apikey.Generate,
	}
}

// CreateAPIKey handles POST /api/v1/create-api-key.
// The plaintext key appears only in this response; only its hash is stored.
func (h *APIKeyHandler) CreateAPIKey(c *gin.Context) {
	ctx := c.Request.Context()
	log := requestLogger(c, h.logger)

	if _, err := h.gate.Check(ctx, c.Request.Header, h.policy); err != nil {
		writeError(c, log, err, msgInternal)
		return
	}

	doc, err := readDocument(c, h.maxBodyBytes)
	if err != nil {
		writeError(c, log, err, msgInternal)
		return
	}

	var req dto.CreateAPIKeyRequest
	if err := h.validator.Decode(doc, &req); err != nil {
		writeError(c, log, err, msgInternal)
		return
	}

	plain, err := h.generateKey()
	if err != nil {
		writeError(c, log, err, msgCreateKeyFailed)
		return
	}

	cred := model.Credential{
		KeyHash:    apikey.Hash(plain),
		Name:       req.Name,
		OwnerEmail: req.Email,
		RateLimit:  h.defaultLimit,
	}
	if err := h.credentials.CreateCredential(ctx, &cred); err != nil {
		writeError(c, log, err, msgCreateKeyFailed)
		return
	}

	log.Info("API key issued",
		slog.String("credential_id", cred.ID),
		slog.Int("rate_limit", cred.RateLimit),
	)

	c.JSON(http.StatusCreated, dto.CreateAPIKeyResponse{
		Key:       plain,
		Name:      cred.Name,
		RateLimit: cred.RateLimit,
		Message:   keyIssuedMessage,
	})
}
