package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/book-ingest/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes.
// A nil limiter disables rate limiting.
func SetupRouter(deps *handler.Dependencies, limiter *RateLimiter) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "book-ingest-api",
		})
	})

	r.GET("/ready", readyHandler(deps.Checks))

	// Initialize job handler
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	if limiter != nil {
		v1.Use(RateLimitMiddleware(limiter, deps.Logger))
	}
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create and enqueue an ingestion job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - Cancel a job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		// POST /api/v1/catalogs/:source/index - Enqueue unindexed catalog titles
		v1.POST("/catalogs/:source/index", jobHandler.IndexCatalog)
	}

	return r
}

func readyHandler(checks map[string]handler.HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		c.JSON(status, gin.H{"checks": results})
	}
}
