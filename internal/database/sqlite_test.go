package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kpihub/scmscan/internal/config"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var applied []struct {
		Filename string `db:"filename"`
	}
	err := db.Select(context.Background(), &applied, `SELECT filename FROM schema_migrations`)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("expected 1 recorded migration, got %d", len(applied))
	}
}

type userRow struct {
	ID           int64  `db:"id"`
	ToolConfigID string `db:"tool_config_id"`
	DisplayName  string `db:"display_name"`
	Email        string `db:"email"`
	Username     string `db:"username"`
}

func TestInsertAssignsRowID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.Insert(ctx, "scm_users", &userRow{ToolConfigID: "t1", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	second, err := db.Insert(ctx, "scm_users", &userRow{ToolConfigID: "t1", Email: "b@example.com"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first == 0 || second <= first {
		t.Fatalf("expected increasing row IDs, got %d then %d", first, second)
	}
}

func TestUpsertRefreshesNonKeyColumns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	row := &userRow{ToolConfigID: "t1", Email: "a@example.com", DisplayName: "Alice"}
	keys := []string{"tool_config_id", "email", "username"}
	if err := db.Upsert(ctx, "scm_users", row, keys); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	row.DisplayName = "Alice B"
	if err := db.Upsert(ctx, "scm_users", row, keys); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	var got []userRow
	err := db.Select(ctx, &got, `SELECT id, tool_config_id, display_name, email, username FROM scm_users`)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", len(got))
	}
	if got[0].DisplayName != "Alice B" {
		t.Fatalf("display_name = %q, want %q", got[0].DisplayName, "Alice B")
	}
}

func TestGetScansInFieldOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.Insert(ctx, "scm_users", &userRow{ToolConfigID: "t1", Email: "a@example.com", Username: "alice"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var got userRow
	err := db.Get(ctx, &got,
		`SELECT id, tool_config_id, display_name, email, username FROM scm_users WHERE email = ?`,
		"a@example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Username != "alice" || got.ID == 0 {
		t.Fatalf("unexpected row: %+v", got)
	}
}
