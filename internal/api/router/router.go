package router

import (
	"github.com/cuongbtq/open-job-board/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, serviceName string) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware(deps.Logger))
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.NoMethod(handler.MethodNotAllowed)

	health := handler.NewHealthHandler(deps, serviceName)
	r.GET("/health", health.Health)

	keyHandler := handler.NewAPIKeyHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// GET is a liveness probe, POST issues a key
		v1.GET("/create-api-key", handler.Probe("create-api-key"))
		v1.POST("/create-api-key", keyHandler.CreateAPIKey)

		// GET is a liveness probe, POST ingests one job offer
		v1.GET("/submit-job", handler.Probe("submit-job"))
		v1.POST("/submit-job", jobHandler.SubmitJob)
	}

	return r
}
