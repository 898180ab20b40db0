package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/review-monitor/internal/api/dto"
	"github.com/cuongbtq/review-monitor/internal/api/storage"
	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JobHandler exposes ingestion run logs and the on-demand trigger
type JobHandler struct {
	deps      *Dependencies
	logger    *slog.Logger
	storage   *storage.Storage
	publisher Publisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		deps:      deps,
		logger:    deps.Logger,
		storage:   deps.Storage,
		publisher: deps.Publisher,
	}
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	switch domain.JobStatus(req.Status) {
	case "", domain.JobStatusRunning, domain.JobStatusSuccess, domain.JobStatusError:
	default:
		respondError(c, http.StatusBadRequest, "Invalid status")
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Debug("Invalid cursor", slog.String("error", err.Error()))
		respondError(c, http.StatusBadRequest, "Invalid cursor")
		return
	}

	logs, err := h.storage.ListJobLogs(c.Request.Context(), storage.JobFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		internalError(c, h.logger, "Failed to list jobs", err)
		return
	}

	hasMore := len(logs) > req.PageSize
	if hasMore {
		logs = logs[:req.PageSize]
	}

	jobs := make([]dto.JobDTO, len(logs))
	for i, log := range logs {
		jobs[i] = dto.NewJobDTO(log)
	}

	var nextCursor string
	if hasMore {
		last := logs[len(logs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			StartTime: last.StartTime,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobs,
		NextCursor: nextCursor,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		respondError(c, http.StatusBadRequest, "job_id must be a valid UUID")
		return
	}

	log, err := h.storage.GetJobLog(c.Request.Context(), jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		respondError(c, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		internalError(c, h.logger, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(*log))
}

// TriggerReviewFetch handles POST /api/v1/jobs/review-fetch. The worker
// skips the trigger when a run is already in progress.
func (h *JobHandler) TriggerReviewFetch(c *gin.Context) {
	if h.publisher == nil {
		respondError(c, http.StatusServiceUnavailable, "On-demand ingestion is disabled")
		return
	}

	msg := domain.JobMessage{
		JobType:     domain.JobTypeReviewFetch,
		RequestedBy: CurrentUser(c).Username,
		RequestedAt: h.deps.now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		internalError(c, h.logger, "Failed to encode trigger", err)
		return
	}

	if err := h.publisher.Publish(c.Request.Context(), body, "application/json"); err != nil {
		internalError(c, h.logger, "Failed to queue review fetch", err)
		return
	}

	h.logger.Info("Review fetch queued", slog.String("user", msg.RequestedBy))

	c.JSON(http.StatusAccepted, dto.TriggerJobResponse{
		JobType:     msg.JobType,
		Status:      "queued",
		RequestedAt: msg.RequestedAt,
	})
}
