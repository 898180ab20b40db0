package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/review-monitor/internal/api/dto"
	"github.com/cuongbtq/review-monitor/internal/api/storage"
	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/gin-gonic/gin"
)

// CompanyHandler handles company search and tracking
type CompanyHandler struct {
	deps     *Dependencies
	logger   *slog.Logger
	storage  *storage.Storage
	provider Provider
}

func NewCompanyHandler(deps *Dependencies) *CompanyHandler {
	return &CompanyHandler{
		deps:     deps,
		logger:   deps.Logger,
		storage:  deps.Storage,
		provider: deps.Provider,
	}
}

// SearchCompanies handles GET /api/v1/companies/search?query=
func (h *CompanyHandler) SearchCompanies(c *gin.Context) {
	var req dto.SearchCompaniesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "query is required")
		return
	}

	companies, err := h.provider.SearchCompanies(c.Request.Context(), req.Query)
	if err != nil {
		h.logger.Warn("Company search failed",
			slog.String("query", req.Query),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusBadGateway, "Company search failed")
		return
	}

	h.logger.Info("Company search",
		slog.String("user", CurrentUser(c).Username),
		slog.String("query", req.Query),
		slog.Int("results", len(companies)),
	)

	c.JSON(http.StatusOK, companies)
}

// TrackCompany handles POST /api/v1/companies/track
func (h *CompanyHandler) TrackCompany(c *gin.Context) {
	var req dto.TrackCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := CurrentUser(c)
	tracked, err := h.storage.TrackCompany(c.Request.Context(), req.ToDomain(), user.Username, h.deps.now())
	if errors.Is(err, domain.ErrCompanyAlreadyTracked) {
		respondError(c, http.StatusConflict, "Company already tracked")
		return
	}
	if err != nil {
		internalError(c, h.logger, "Failed to track company", err)
		return
	}

	h.logger.Info("Company tracked",
		slog.String("user", user.Username),
		slog.String("domain", tracked.Domain),
	)

	c.JSON(http.StatusOK, tracked)
}

// ListTracked handles GET /api/v1/companies/tracked
func (h *CompanyHandler) ListTracked(c *gin.Context) {
	companies, err := h.storage.TrackedCompanies(c.Request.Context(), CurrentUser(c).Username)
	if err != nil {
		internalError(c, h.logger, "Failed to list tracked companies", err)
		return
	}

	c.JSON(http.StatusOK, companies)
}
