package domain

import "time"

// JobStatus is the lifecycle state of an ingestion run
type JobStatus string

// Job status constants
const (
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusError   JobStatus = "error"
)

// JobTypeReviewFetch is the only job type recorded in the run log
const JobTypeReviewFetch = "review_fetch"

// IsTerminal reports whether no further transition is allowed
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusError
}

// JobRunLog is the persisted record of one ingestion run
type JobRunLog struct {
	JobID              string     `json:"job_id"`
	JobType            string     `json:"job_type"`
	Status             JobStatus  `json:"status"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	ErrorMessage       *string    `json:"error_message"`
	CompaniesProcessed int        `json:"companies_processed"`
	ReviewsFetched     int        `json:"reviews_fetched"`
}

// JobMessage is the RabbitMQ message asking the worker to run an ingestion now
type JobMessage struct {
	JobType     string    `json:"job_type"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
	DeliveryTag uint64    `json:"-"`
}
