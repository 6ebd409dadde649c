package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Each driver has its own migration directory so the DDL can use native
// types instead of being rewritten at apply time.
//
//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// runMigrations applies the pending *.sql files under migrations/<flavor>/
// in filename order. trackingDDL creates the schema_migrations table and is
// driver specific. Statements are split on ";" because the MySQL driver
// rejects multi-statement Exec by default.
func runMigrations(ctx context.Context, db *sql.DB, flavor, trackingDDL string) error {
	if _, err := db.ExecContext(ctx, trackingDDL); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	dir := "migrations/" + flavor
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name)
		if err := row.Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		for _, stmt := range strings.Split(string(data), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying migration %s: %w", name, err)
			}
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		slog.Info("Applied migration", "file", name, "driver", flavor)
	}
	return nil
}
