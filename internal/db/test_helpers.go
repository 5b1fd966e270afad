package db

import (
	"path/filepath"
	"testing"
)

// openTestDB opens a migrated throwaway database in a per-test temp dir.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.MigrateUp(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return database
}
