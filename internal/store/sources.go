package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"pipehub/internal/entity"
)

const sourceColumns = `id, name, url, source_type, module_name, config, is_active, last_scraped_at, created_at, updated_at`

// SourceFilter narrows and pages ListSources.
type SourceFilter struct {
	SourceType string
	IsActive   *bool
	Limit      int
	Offset     int
}

// SourceUpdate carries a partial update; nil fields are left untouched. A
// non-nil Config replaces the stored config wholesale.
type SourceUpdate struct {
	Name       *string
	URL        *string
	SourceType *string
	ModuleName *string
	Config     map[string]any
	IsActive   *bool
}

// CreateSource inserts a new source and fills its ID and timestamps.
// Source names are unique; a duplicate yields ErrAlreadyExists.
func (s *Store) CreateSource(ctx context.Context, src *entity.Source) error {
	if src.Name == "" || src.URL == "" || src.ModuleName == "" {
		return errors.New("create source: name, url and module_name are required")
	}
	taken, err := s.sourceNameTaken(ctx, src.Name, 0)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("source %q: %w", src.Name, ErrAlreadyExists)
	}

	cfg, err := marshalMap(src.Config)
	if err != nil {
		return err
	}
	ts := now()
	src.CreatedAt = ts
	src.UpdatedAt = ts

	err = s.h.QueryRowContext(ctx,
		`INSERT INTO sources (name, url, source_type, module_name, config, is_active, last_scraped_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		src.Name, src.URL, src.SourceType, src.ModuleName, cfg, src.IsActive,
		unixPtr(src.LastScrapedAt), unix(src.CreatedAt), unix(src.UpdatedAt),
	).Scan(&src.ID)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

// GetSource loads one source by id.
func (s *Store) GetSource(ctx context.Context, id int64) (*entity.Source, error) {
	row := s.h.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source %d: %w", id, err)
	}
	return src, nil
}

// GetSourceByName loads one source by its unique name.
func (s *Store) GetSourceByName(ctx context.Context, name string) (*entity.Source, error) {
	row := s.h.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE name = $1`, name)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source %q: %w", name, err)
	}
	return src, nil
}

// ListSources returns matching sources ordered by id plus the total count
// disregarding Limit/Offset.
func (s *Store) ListSources(ctx context.Context, f SourceFilter) ([]entity.Source, int, error) {
	conds := sourceConds(f)

	var total int
	countQ, countArgs, err := psql.Select("COUNT(*)").From("sources").Where(conds).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build source count: %w", err)
	}
	if err := s.h.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sources: %w", err)
	}

	b := psql.Select(sourceColumns).From("sources").Where(conds).OrderBy("id")
	// SQLite rejects OFFSET without LIMIT, so offset only applies when paging.
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
		if f.Offset > 0 {
			b = b.Offset(uint64(f.Offset))
		}
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build source list: %w", err)
	}

	rows, err := s.h.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []entity.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list sources: %w", err)
	}
	return sources, total, nil
}

// UpdateSource applies a partial update and returns the refreshed row.
// A missing row is reported as not-found even when the update would also
// collide with another source's name.
func (s *Store) UpdateSource(ctx context.Context, id int64, u SourceUpdate) (*entity.Source, error) {
	if _, err := s.GetSource(ctx, id); err != nil {
		return nil, err
	}
	b := psql.Update("sources").Set("updated_at", unix(now()))
	if u.Name != nil {
		taken, err := s.sourceNameTaken(ctx, *u.Name, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("source %q: %w", *u.Name, ErrAlreadyExists)
		}
		b = b.Set("name", *u.Name)
	}
	if u.URL != nil {
		b = b.Set("url", *u.URL)
	}
	if u.SourceType != nil {
		b = b.Set("source_type", *u.SourceType)
	}
	if u.ModuleName != nil {
		b = b.Set("module_name", *u.ModuleName)
	}
	if u.Config != nil {
		cfg, err := marshalMap(u.Config)
		if err != nil {
			return nil, err
		}
		b = b.Set("config", cfg)
	}
	if u.IsActive != nil {
		b = b.Set("is_active", *u.IsActive)
	}

	q, args, err := b.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build source update: %w", err)
	}
	res, err := s.h.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("update source %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update source %d: %w", id, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return s.GetSource(ctx, id)
}

// TouchSourceScraped stamps last_scraped_at after a successful capture.
func (s *Store) TouchSourceScraped(ctx context.Context, id int64, t time.Time) error {
	res, err := s.h.ExecContext(ctx,
		`UPDATE sources SET last_scraped_at = $1, updated_at = $2 WHERE id = $3`,
		unix(t), unix(now()), id)
	if err != nil {
		return fmt.Errorf("touch source %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch source %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSource removes a source; its captures and their processed items go
// with it via cascade.
func (s *Store) DeleteSource(ctx context.Context, id int64) error {
	res, err := s.h.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete source %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) sourceNameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var id int64
	err := s.h.QueryRowContext(ctx,
		`SELECT id FROM sources WHERE name = $1 AND id <> $2`, name, excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check source name: %w", err)
	}
	return true, nil
}

func sourceConds(f SourceFilter) sq.And {
	conds := sq.And{}
	if f.SourceType != "" {
		conds = append(conds, sq.Eq{"source_type": f.SourceType})
	}
	if f.IsActive != nil {
		conds = append(conds, sq.Eq{"is_active": *f.IsActive})
	}
	return conds
}

func scanSource(row scanner) (*entity.Source, error) {
	var (
		src         entity.Source
		cfg         sql.NullString
		lastScraped sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(&src.ID, &src.Name, &src.URL, &src.SourceType, &src.ModuleName,
		&cfg, &src.IsActive, &lastScraped, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if src.Config, err = unmarshalMap(cfg); err != nil {
		return nil, err
	}
	src.LastScrapedAt = fromNullUnix(lastScraped)
	src.CreatedAt = fromUnix(createdAt)
	src.UpdatedAt = fromUnix(updatedAt)
	return &src, nil
}
