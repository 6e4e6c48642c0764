package entity

import "time"

// JobStatus is the lifecycle state of a ScrapingJob.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ScrapingJob mirrors the `scraping_jobs` table: the audit record of one
// scrape dispatch. A job is written once per dispatch, moves
// pending -> running -> completed|failed, and is never retried or reopened.
type ScrapingJob struct {
	ID               int64          `json:"id"`
	JobType          string         `json:"job_type"`
	Status           JobStatus      `json:"status"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	RecordsProcessed int            `json:"records_processed"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}
