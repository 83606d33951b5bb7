package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	logger  *slog.Logger
	checker HealthChecker
	service string
}

func NewHealthHandler(deps *Dependencies, service string) *HealthHandler {
	return &HealthHandler{logger: deps.Logger, checker: deps.Health, service: service}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if h.checker != nil {
		if err := h.checker.HealthCheck(c.Request.Context()); err != nil {
			requestLogger(c, h.logger).Warn("Health check failed", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": h.service,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.service,
	})
}
