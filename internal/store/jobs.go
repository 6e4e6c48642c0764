package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pipehub/internal/entity"
)

const jobColumns = `id, job_type, status, started_at, completed_at, records_processed, error_message, metadata`

// CreateJob inserts a new job and fills its ID. Status defaults to pending
// and StartedAt to the current time.
func (s *Store) CreateJob(ctx context.Context, job *entity.ScrapingJob) error {
	if job.JobType == "" {
		return errors.New("create job: job_type is required")
	}
	if job.Status == "" {
		job.Status = entity.JobPending
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = now()
	}
	meta, err := marshalMap(job.Metadata)
	if err != nil {
		return err
	}
	err = s.h.QueryRowContext(ctx,
		`INSERT INTO scraping_jobs (job_type, status, started_at, completed_at, records_processed, error_message, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		job.JobType, string(job.Status), unix(job.StartedAt), unixPtr(job.CompletedAt),
		job.RecordsProcessed, job.ErrorMessage, meta,
	).Scan(&job.ID)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// StartJob moves a job to running.
func (s *Store) StartJob(ctx context.Context, id int64) error {
	return s.setJobStatus(ctx, id,
		`UPDATE scraping_jobs SET status = $1 WHERE id = $2`,
		string(entity.JobRunning), id)
}

// CompleteJob finalizes a job as completed with its record count.
func (s *Store) CompleteJob(ctx context.Context, id int64, records int) error {
	return s.setJobStatus(ctx, id,
		`UPDATE scraping_jobs SET status = $1, completed_at = $2, records_processed = $3 WHERE id = $4`,
		string(entity.JobCompleted), unix(now()), records, id)
}

// FailJob finalizes a job as failed with the error message.
func (s *Store) FailJob(ctx context.Context, id int64, message string) error {
	return s.setJobStatus(ctx, id,
		`UPDATE scraping_jobs SET status = $1, completed_at = $2, error_message = $3 WHERE id = $4`,
		string(entity.JobFailed), unix(now()), message, id)
}

func (s *Store) setJobStatus(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.h.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetJob loads one job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*entity.ScrapingJob, error) {
	row := s.h.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM scraping_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]entity.ScrapingJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.h.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM scraping_jobs ORDER BY started_at DESC, id DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []entity.ScrapingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs reports how many job rows exist.
func (s *Store) CountJobs(ctx context.Context) (int, error) {
	var n int
	if err := s.h.QueryRowContext(ctx, `SELECT COUNT(*) FROM scraping_jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

func scanJob(row scanner) (*entity.ScrapingJob, error) {
	var (
		job         entity.ScrapingJob
		status      string
		startedAt   int64
		completedAt sql.NullInt64
		meta        sql.NullString
	)
	err := row.Scan(&job.ID, &job.JobType, &status, &startedAt, &completedAt,
		&job.RecordsProcessed, &job.ErrorMessage, &meta)
	if err != nil {
		return nil, err
	}
	job.Status = entity.JobStatus(status)
	job.StartedAt = fromUnix(startedAt)
	job.CompletedAt = fromNullUnix(completedAt)
	if job.Metadata, err = unmarshalMap(meta); err != nil {
		return nil, err
	}
	return &job, nil
}
