package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/review-monitor/internal/api/storage"
	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/gin-gonic/gin"
)

// ReviewHandler serves stored reviews of tracked companies
type ReviewHandler struct {
	logger   *slog.Logger
	storage  *storage.Storage
	provider Provider
}

func NewReviewHandler(deps *Dependencies) *ReviewHandler {
	return &ReviewHandler{
		logger:   deps.Logger,
		storage:  deps.Storage,
		provider: deps.Provider,
	}
}

// GetReviews handles GET /api/v1/reviews/:domain.
// With nothing stored yet for the domain, the provider is asked once and the
// result is persisted before it is returned.
func (h *ReviewHandler) GetReviews(c *gin.Context) {
	companyDomain := c.Param("domain")
	user := CurrentUser(c)
	ctx := c.Request.Context()

	err := h.storage.RequireTracked(ctx, companyDomain, user.Username)
	if errors.Is(err, domain.ErrCompanyNotTracked) {
		respondError(c, http.StatusForbidden, "Company not tracked by user")
		return
	}
	if err != nil {
		internalError(c, h.logger, "Failed to load tracked companies", err)
		return
	}

	reviews, err := h.storage.ReviewsForDomain(ctx, companyDomain)
	if err != nil {
		internalError(c, h.logger, "Failed to load reviews", err)
		return
	}

	if len(reviews) == 0 {
		fetched, err := h.provider.FetchReviews(ctx, companyDomain)
		if err != nil {
			h.logger.Warn("Failed to fetch reviews",
				slog.String("domain", companyDomain),
				slog.String("error", err.Error()),
			)
		}

		if len(fetched) > 0 {
			reviews, err = h.storage.SaveReviews(ctx, companyDomain, fetched)
			if err != nil {
				internalError(c, h.logger, "Failed to save reviews", err)
				return
			}
		}
	}

	h.logger.Info("Reviews served",
		slog.String("user", user.Username),
		slog.String("domain", companyDomain),
		slog.Int("count", len(reviews)),
	)

	c.JSON(http.StatusOK, reviews)
}
