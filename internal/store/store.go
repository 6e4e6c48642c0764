// Package store persists the pipeline entities over database/sql. PostgreSQL
// (through the pgx stdlib driver) backs production deployments; SQLite
// (modernc) backs tests and single-node setups. All SQL stays inside the
// portable intersection of the two dialects: $N placeholders, INSERT ...
// RETURNING id read through QueryRow, timestamps as unix seconds.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

//go:embed schema_postgres.sql schema_sqlite.sql
var schemaFS embed.FS

var (
	// ErrNotFound marks a lookup whose id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists marks a uniqueness violation, e.g. a duplicate source name.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNoPayload marks a scraped capture with no raw payload at all.
	ErrNoPayload = errors.New("no raw payload")
)

// Dialect selects the SQL flavor for schema installation.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// psql builds dynamic queries with $N placeholders, which both supported
// dialects accept.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides access to sources, captures, processed items, and jobs.
// A Store obtained from Open or NewWithDB runs each call on the pool; a Store
// handed to a WithTx callback runs everything on that transaction.
type Store struct {
	db      *sql.DB // nil when transaction-scoped
	h       dbtx
	dialect Dialect
}

// Open connects with the given database/sql driver name ("pgx" or "sqlite")
// and dsn. The caller must import the matching driver package.
func Open(driver, dsn string) (*Store, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewWithDB(db, dialect), nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, h: db, dialect: dialect}
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close releases the underlying pool. No-op on transaction-scoped stores.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema installs the schema for the store's dialect. Statements use
// IF NOT EXISTS, so re-running is harmless.
func (s *Store) InitSchema(ctx context.Context) error {
	name := "schema_postgres.sql"
	if s.dialect == SQLite {
		name = "schema_sqlite.sql"
	}
	schema, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	// The pgx driver rejects multi-statement Exec, so run statements one at
	// a time on both dialects.
	for _, stmt := range splitStatements(string(schema)) {
		if _, err := s.h.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func splitStatements(schema string) []string {
	// Drop comment and blank lines first so a ';' inside a comment is not
	// taken for a statement terminator.
	var lines []string
	for _, line := range strings.Split(schema, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		lines = append(lines, line)
	}
	var stmts []string
	for _, chunk := range strings.Split(strings.Join(lines, "\n"), ";") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		stmts = append(stmts, strings.TrimSpace(chunk))
	}
	return stmts
}

// WithTx runs fn against a transaction-scoped Store, committing on nil and
// rolling back on error. A Store that is already transaction-scoped runs fn
// directly in the caller's transaction.
func (s *Store) WithTx(ctx context.Context, fn func(*Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{h: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Timestamps persist at second precision.

func unix(t time.Time) int64 {
	return t.UTC().Unix()
}

func unixPtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: unix(*t), Valid: true}
}

func fromUnix(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func marshalMap(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal json column: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalMap(v sql.NullString) (map[string]any, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(v.String), &m); err != nil {
		return nil, fmt.Errorf("unmarshal json column: %w", err)
	}
	return m, nil
}

func marshalStrings(vals []string) (sql.NullString, error) {
	if vals == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal json column: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalStrings(v sql.NullString) ([]string, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var vals []string
	if err := json.Unmarshal([]byte(v.String), &vals); err != nil {
		return nil, fmt.Errorf("unmarshal json column: %w", err)
	}
	return vals, nil
}

// scanner abstracts *sql.Row and *sql.Rows for the row-mapping helpers.
type scanner interface {
	Scan(dest ...any) error
}
