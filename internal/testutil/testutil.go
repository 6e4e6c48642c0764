// Package testutil provides the shared SQLite-backed store used by tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"pipehub/internal/store"
)

// OpenStore returns a Store over an in-memory SQLite database with the schema
// applied and foreign keys enabled. The pool is pinned to one connection so
// every statement sees the same in-memory database; the store is closed when
// the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	st := store.NewWithDB(db, store.SQLite)
	require.NoError(t, st.InitSchema(context.Background()))

	t.Cleanup(func() { _ = st.Close() })
	return st
}
