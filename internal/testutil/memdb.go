// Package testutil provides in-memory chain fixtures for tests across the
// module. Never import this in production code.
package testutil

import (
	"testing"

	"github.com/tolelom/degenchain/storage"
)

// NewMemDB opens an in-memory LevelDB that is closed when the test ends.
func NewMemDB(t testing.TB) *storage.LevelDB {
	t.Helper()
	db, err := storage.NewMemLevelDB()
	if err != nil {
		t.Fatalf("memdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewStateDB returns a storage.StateDB backed by a fresh NewMemDB.
func NewStateDB(t testing.TB) *storage.StateDB {
	t.Helper()
	return storage.NewStateDB(NewMemDB(t))
}
