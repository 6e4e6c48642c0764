package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"pipehub/internal/entity"
)

const scrapedColumns = `id, source_id, job_id, url, raw_html, raw_json, raw_text, status_code, content_type, scraped_at`

// CreateScrapedData inserts one raw capture and fills its ID. At least one of
// the raw payloads must be populated; captures are never updated afterwards.
func (s *Store) CreateScrapedData(ctx context.Context, d *entity.ScrapedData) error {
	if !d.HasPayload() {
		return fmt.Errorf("scraped data for source %d: %w", d.SourceID, ErrNoPayload)
	}
	if d.ScrapedAt.IsZero() {
		d.ScrapedAt = now()
	}
	err := s.h.QueryRowContext(ctx,
		`INSERT INTO scraped_data (source_id, job_id, url, raw_html, raw_json, raw_text, status_code, content_type, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		d.SourceID, nullInt64(d.JobID), d.URL,
		nullString(d.RawHTML), nullString(d.RawJSON), nullString(d.RawText),
		d.StatusCode, d.ContentType, unix(d.ScrapedAt),
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("insert scraped data: %w", err)
	}
	return nil
}

// GetScrapedData loads one capture by id, payloads included.
func (s *Store) GetScrapedData(ctx context.Context, id int64) (*entity.ScrapedData, error) {
	row := s.h.QueryRowContext(ctx,
		`SELECT `+scrapedColumns+` FROM scraped_data WHERE id = $1`, id)
	d, err := scanScrapedData(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scraped data %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get scraped data %d: %w", id, err)
	}
	return d, nil
}

// ListScrapedData returns a source's captures newest-first plus the total
// count disregarding limit/offset.
func (s *Store) ListScrapedData(ctx context.Context, sourceID int64, limit, offset int) ([]entity.ScrapedData, int, error) {
	var total int
	err := s.h.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scraped_data WHERE source_id = $1`, sourceID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count scraped data: %w", err)
	}

	b := psql.Select(scrapedColumns).From("scraped_data").
		Where(sq.Eq{"source_id": sourceID}).
		OrderBy("scraped_at DESC", "id DESC")
	// SQLite rejects OFFSET without LIMIT, so offset only applies when paging.
	if limit > 0 {
		b = b.Limit(uint64(limit))
		if offset > 0 {
			b = b.Offset(uint64(offset))
		}
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build scraped data list: %w", err)
	}

	rows, err := s.h.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scraped data: %w", err)
	}
	defer rows.Close()

	var captures []entity.ScrapedData
	for rows.Next() {
		d, err := scanScrapedData(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan scraped data: %w", err)
		}
		captures = append(captures, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list scraped data: %w", err)
	}
	return captures, total, nil
}

func scanScrapedData(row scanner) (*entity.ScrapedData, error) {
	var (
		d         entity.ScrapedData
		jobID     sql.NullInt64
		rawHTML   sql.NullString
		rawJSON   sql.NullString
		rawText   sql.NullString
		scrapedAt int64
	)
	err := row.Scan(&d.ID, &d.SourceID, &jobID, &d.URL,
		&rawHTML, &rawJSON, &rawText, &d.StatusCode, &d.ContentType, &scrapedAt)
	if err != nil {
		return nil, err
	}
	if jobID.Valid {
		d.JobID = &jobID.Int64
	}
	d.RawHTML = rawHTML.String
	d.RawJSON = rawJSON.String
	d.RawText = rawText.String
	d.ScrapedAt = fromUnix(scrapedAt)
	return &d, nil
}
