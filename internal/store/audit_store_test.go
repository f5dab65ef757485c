package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"wallet/internal/db"
	"wallet/internal/db/dbtest"
	"wallet/internal/models"

	"github.com/shopspring/decimal"
)

func TestAuditStoreAppend(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "INSERT INTO audit_logs") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[2] != "30.00" || args[4] != models.AuditStatusSuccess {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*int64) = 11
			return nil
		},
	}
	store := NewAuditStore(stubDB{}, db.Postgres)
	id, err := store.Append(ctx, getter, 1, 2, decimal.NewFromInt(30), sql.NullString{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 11 {
		t.Fatalf("unexpected id: %d", id)
	}
}

func TestAuditStoreListForUserOrdering(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Open(t)
	store := NewAuditStore(database, db.SQLite)
	alice := dbtest.SeedUser(t, database, "Alice", "alice@example.com", "0")
	bob := dbtest.SeedUser(t, database, "Bob", "bob@example.com", "0")
	carol := dbtest.SeedUser(t, database, "Carol", "carol@example.com", "0")

	first, err := store.Append(ctx, database, alice, bob, decimal.NewFromInt(5), sql.NullString{String: "lunch", Valid: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := store.Append(ctx, database, bob, alice, decimal.RequireFromString("1.25"), sql.NullString{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Append(ctx, database, bob, carol, decimal.NewFromInt(1), sql.NullString{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := store.ListForUser(ctx, alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != second || entries[1].ID != first {
		t.Fatalf("expected newest first, got %d then %d", entries[0].ID, entries[1].ID)
	}
	if entries[1].SenderName.String != "Alice" || entries[1].ReceiverName.String != "Bob" {
		t.Fatalf("unexpected names: %#v", entries[1])
	}
	if entries[1].Note.String != "lunch" || !entries[1].Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected entry: %#v", entries[1])
	}

	entry, err := store.Get(ctx, database, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != models.AuditStatusSuccess || entry.Note.Valid {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestAuditLogIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Open(t)
	store := NewAuditStore(database, db.SQLite)
	alice := dbtest.SeedUser(t, database, "Alice", "alice@example.com", "0")
	bob := dbtest.SeedUser(t, database, "Bob", "bob@example.com", "0")
	id, err := store.Append(ctx, database, alice, bob, decimal.NewFromInt(5), sql.NullString{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := database.Exec(`UPDATE audit_logs SET amount = '500.00' WHERE id = ?`, id); err == nil {
		t.Fatalf("expected update to be rejected")
	} else if !strings.Contains(err.Error(), "append-only") {
		t.Fatalf("unexpected update error: %v", err)
	}
	if _, err := database.Exec(`DELETE FROM audit_logs WHERE id = ?`, id); err == nil {
		t.Fatalf("expected delete to be rejected")
	}
	if _, err := database.Exec(`DELETE FROM users WHERE id = ?`, alice); err == nil {
		t.Fatalf("expected referenced user delete to be restricted")
	}

	entry, err := store.Get(ctx, database, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("entry changed: %#v", entry)
	}
}
