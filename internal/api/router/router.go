package router

import (
	"context"
	"net/http"

	"github.com/cuongbtq/review-monitor/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, health HealthCheck) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "review-api-service",
		})
	})

	companyHandler := handler.NewCompanyHandler(deps)
	reviewHandler := handler.NewReviewHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(deps.Storage, deps.Logger))
	{
		companies := v1.Group("/companies")
		{
			companies.GET("/search", companyHandler.SearchCompanies)
			companies.POST("/track", companyHandler.TrackCompany)
			companies.GET("/tracked", companyHandler.ListTracked)
		}

		v1.GET("/reviews/:domain", reviewHandler.GetReviews)

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.POST("/review-fetch", jobHandler.TriggerReviewFetch)
			jobs.GET("/:job_id", jobHandler.GetJob)
		}
	}

	return r
}
