package dto

import (
	"time"

	"github.com/cuongbtq/review-monitor/internal/domain"
)

type TrackCompanyRequest struct {
	Domain             string   `json:"domain" binding:"required"`
	Name               string   `json:"name" binding:"required"`
	Website            string   `json:"website"`
	TrustScore         *float64 `json:"trustscore"`
	TrustScoreCategory *float64 `json:"trustscore_category"`
	NumberOfReviews    *int     `json:"number_of_reviews"`
}

func (r TrackCompanyRequest) ToDomain() domain.Company {
	return domain.Company{
		Domain:             r.Domain,
		Name:               r.Name,
		Website:            r.Website,
		TrustScore:         r.TrustScore,
		TrustScoreCategory: r.TrustScoreCategory,
		NumberOfReviews:    r.NumberOfReviews,
	}
}

type SearchCompaniesRequest struct {
	Query string `form:"query" binding:"required"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID              string  `json:"job_id"`
	JobType            string  `json:"job_type"`
	Status             string  `json:"status"`
	StartTime          string  `json:"start_time"`
	EndTime            *string `json:"end_time"`
	ErrorMessage       *string `json:"error_message"`
	CompaniesProcessed int     `json:"companies_processed"`
	ReviewsFetched     int     `json:"reviews_fetched"`
}

func NewJobDTO(log domain.JobRunLog) JobDTO {
	dto := JobDTO{
		JobID:              log.JobID,
		JobType:            log.JobType,
		Status:             string(log.Status),
		StartTime:          log.StartTime.Format(time.RFC3339),
		ErrorMessage:       log.ErrorMessage,
		CompaniesProcessed: log.CompaniesProcessed,
		ReviewsFetched:     log.ReviewsFetched,
	}
	if log.EndTime != nil {
		end := log.EndTime.Format(time.RFC3339)
		dto.EndTime = &end
	}
	return dto
}

type TriggerJobResponse struct {
	JobType     string    `json:"job_type"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requested_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
