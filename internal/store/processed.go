package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"pipehub/internal/entity"
)

const processedColumns = `id, scraped_data_id, title, content_text, summary, sentiment_score, key_concepts, metadata, processor_module, processed_at`

// AnalysisUpdate carries the analyzer-owned fields of a processed item. Nil
// fields are left untouched; a non-nil KeyConcepts or Metadata replaces the
// stored value wholesale, which is what keeps re-analysis idempotent.
type AnalysisUpdate struct {
	Summary        *string
	SentimentScore *float64
	KeyConcepts    []string
	Metadata       map[string]any
}

// CreateProcessedData inserts one extracted item and fills its ID. The
// creating scraper module must stamp ProcessorModule so analysis can route
// the row later.
func (s *Store) CreateProcessedData(ctx context.Context, d *entity.ProcessedData) error {
	if d.ScrapedDataID == 0 {
		return errors.New("create processed data: scraped_data_id is required")
	}
	if d.ProcessorModule == "" {
		return errors.New("create processed data: processor_module is required")
	}
	if d.ProcessedAt.IsZero() {
		d.ProcessedAt = now()
	}
	concepts, err := marshalStrings(d.KeyConcepts)
	if err != nil {
		return err
	}
	meta, err := marshalMap(d.Metadata)
	if err != nil {
		return err
	}
	err = s.h.QueryRowContext(ctx,
		`INSERT INTO processed_data (scraped_data_id, title, content_text, summary, sentiment_score, key_concepts, metadata, processor_module, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		d.ScrapedDataID, nullString(d.Title), nullString(d.ContentText), nullString(d.Summary),
		nullFloat64(d.SentimentScore), concepts, meta, d.ProcessorModule, unix(d.ProcessedAt),
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("insert processed data: %w", err)
	}
	return nil
}

// GetProcessedData loads one extracted item by id.
func (s *Store) GetProcessedData(ctx context.Context, id int64) (*entity.ProcessedData, error) {
	row := s.h.QueryRowContext(ctx,
		`SELECT `+processedColumns+` FROM processed_data WHERE id = $1`, id)
	d, err := scanProcessedData(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("processed data %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get processed data %d: %w", id, err)
	}
	return d, nil
}

// ListProcessedData returns the items extracted from one capture.
func (s *Store) ListProcessedData(ctx context.Context, scrapedDataID int64) ([]entity.ProcessedData, error) {
	rows, err := s.h.QueryContext(ctx,
		`SELECT `+processedColumns+` FROM processed_data WHERE scraped_data_id = $1 ORDER BY id`,
		scrapedDataID)
	if err != nil {
		return nil, fmt.Errorf("list processed data: %w", err)
	}
	return collectProcessedData(rows)
}

// ListProcessedBySource returns every item transitively owned by a source
// through its captures, oldest item first.
func (s *Store) ListProcessedBySource(ctx context.Context, sourceID int64) ([]entity.ProcessedData, error) {
	rows, err := s.h.QueryContext(ctx,
		`SELECT p.id, p.scraped_data_id, p.title, p.content_text, p.summary, p.sentiment_score, p.key_concepts, p.metadata, p.processor_module, p.processed_at
		 FROM processed_data p
		 JOIN scraped_data d ON d.id = p.scraped_data_id
		 WHERE d.source_id = $1
		 ORDER BY p.id`,
		sourceID)
	if err != nil {
		return nil, fmt.Errorf("list processed data for source %d: %w", sourceID, err)
	}
	return collectProcessedData(rows)
}

// UpdateProcessedAnalysis writes analyzer results onto an existing item.
func (s *Store) UpdateProcessedAnalysis(ctx context.Context, id int64, u AnalysisUpdate) error {
	b := psql.Update("processed_data")
	changed := false
	if u.Summary != nil {
		b = b.Set("summary", nullString(*u.Summary))
		changed = true
	}
	if u.SentimentScore != nil {
		b = b.Set("sentiment_score", *u.SentimentScore)
		changed = true
	}
	if u.KeyConcepts != nil {
		concepts, err := marshalStrings(u.KeyConcepts)
		if err != nil {
			return err
		}
		b = b.Set("key_concepts", concepts)
		changed = true
	}
	if u.Metadata != nil {
		meta, err := marshalMap(u.Metadata)
		if err != nil {
			return err
		}
		b = b.Set("metadata", meta)
		changed = true
	}
	if !changed {
		return nil
	}

	q, args, err := b.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build analysis update: %w", err)
	}
	res, err := s.h.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update processed data %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update processed data %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("processed data %d: %w", id, ErrNotFound)
	}
	return nil
}

func collectProcessedData(rows *sql.Rows) ([]entity.ProcessedData, error) {
	defer rows.Close()
	var items []entity.ProcessedData
	for rows.Next() {
		d, err := scanProcessedData(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processed data: %w", err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read processed data: %w", err)
	}
	return items, nil
}

func scanProcessedData(row scanner) (*entity.ProcessedData, error) {
	var (
		d           entity.ProcessedData
		title       sql.NullString
		contentText sql.NullString
		summary     sql.NullString
		sentiment   sql.NullFloat64
		concepts    sql.NullString
		meta        sql.NullString
		processedAt int64
	)
	err := row.Scan(&d.ID, &d.ScrapedDataID, &title, &contentText, &summary,
		&sentiment, &concepts, &meta, &d.ProcessorModule, &processedAt)
	if err != nil {
		return nil, err
	}
	d.Title = title.String
	d.ContentText = contentText.String
	d.Summary = summary.String
	if sentiment.Valid {
		d.SentimentScore = &sentiment.Float64
	}
	if d.KeyConcepts, err = unmarshalStrings(concepts); err != nil {
		return nil, err
	}
	if d.Metadata, err = unmarshalMap(meta); err != nil {
		return nil, err
	}
	d.ProcessedAt = fromUnix(processedAt)
	return &d, nil
}
