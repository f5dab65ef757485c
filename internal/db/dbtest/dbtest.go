// Package dbtest opens throwaway SQLite ledgers for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"wallet/internal/db"

	"github.com/jmoiron/sqlx"
)

// Open returns a migrated SQLite database living in the test's temp dir.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	database, err := db.Connect("file:" + filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if _, err := db.Migrate(context.Background(), database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

// SeedUser inserts a user with the given balance and returns its id.
func SeedUser(t testing.TB, database *sqlx.DB, name, email, balance string) int64 {
	t.Helper()
	var id int64
	err := database.Get(&id, `INSERT INTO users (name, email, hashed_password, balance) VALUES (?, ?, 'x', ?) RETURNING id`, name, email, balance)
	if err != nil {
		t.Fatalf("failed to seed %s: %v", email, err)
	}
	return id
}
