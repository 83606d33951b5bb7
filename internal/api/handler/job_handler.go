package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/open-job-board/internal/api/dto"
	"github.com/cuongbtq/open-job-board/internal/ratelimit"
	"github.com/cuongbtq/open-job-board/internal/submission"
	"github.com/gin-gonic/gin"
)

// JobHandler handles job submission requests
type JobHandler struct {
	logger       *slog.Logger
	gate         RateGate
	jobs         JobStore
	validator    *submission.Validator
	policy       ratelimit.Policy
	maxBodyBytes int64
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		gate:         deps.Gate,
		jobs:         deps.Jobs,
		validator:    submission.NewValidator(deps.Validator),
		policy:       deps.SubmitJobPolicy,
		maxBodyBytes: deps.MaxBodyBytes,
	}
}

// SubmitJob handles POST /api/v1/submit-job
func (h *JobHandler) SubmitJob(c *gin.Context) {
	ctx := c.Request.Context()
	log := requestLogger(c, h.logger)

	id, err := h.gate.Check(ctx, c.Request.Header, h.policy)
	if err != nil {
		writeError(c, log, err, msgInternal)
		return
	}

	doc, err := readDocument(c, h.maxBodyBytes)
	if err != nil {
		writeError(c, log, err, msgInternal)
		return
	}

	sub, err := h.validator.Validate(doc)
	if err != nil {
		log.Debug("Submission rejected", slog.Any("error", err))
		writeError(c, log, err, msgInternal)
		return
	}

	rec := submission.Normalize(sub)
	if err := h.jobs.InsertJob(ctx, &rec); err != nil {
		writeError(c, log, err, msgInternal)
		return
	}

	log.Info("Job submitted",
		slog.String("job_id", rec.ID),
		slog.String("source", rec.Source),
		slog.String("identity", id.Kind.String()),
	)

	c.JSON(http.StatusCreated, dto.SubmitJobResponse{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
	})
}
