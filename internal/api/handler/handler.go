package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/review-monitor/internal/api/dto"
	"github.com/cuongbtq/review-monitor/internal/api/storage"
	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/gin-gonic/gin"
)

// ContextUserKey is the gin context key holding the authenticated *domain.User
const ContextUserKey = "user"

// Provider is the review directory used for search and read-through
type Provider interface {
	SearchCompanies(ctx context.Context, query string) ([]domain.Company, error)
	FetchReviews(ctx context.Context, companyDomain string) ([]domain.Review, error)
}

// Publisher queues on-demand ingestion triggers
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Storage   *storage.Storage
	Provider  Provider
	Publisher Publisher // nil disables POST /jobs/review-fetch
	Now       func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// CurrentUser returns the user set by the auth middleware
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(ContextUserKey); ok {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	return nil
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, dto.ErrorResponse{Error: message})
}

func internalError(c *gin.Context, logger *slog.Logger, message string, err error) {
	logger.Error(message, slog.String("error", err.Error()))
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, message)
}
