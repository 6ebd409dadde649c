package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kpihub/scmscan/internal/config"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB implements DB using mattn/go-sqlite3. This is the default backend
// and the one the engine's own tests run against.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the SQLite database at cfg.Path.
func NewSQLite(cfg config.DatabaseConfig) (*SQLiteDB, error) {
	path := cfg.Path
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, config.DefaultDBFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteDB{db: db, path: path}
	if err := s.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLiteDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteDB) Close() error { return s.db.Close() }

func (s *SQLiteDB) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db, "sqlite", `CREATE TABLE IF NOT EXISTS schema_migrations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		filename    TEXT    NOT NULL UNIQUE,
		applied_at  TEXT    NOT NULL
	)`)
}

func (s *SQLiteDB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return collectRows(rows, dest)
}

func (s *SQLiteDB) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return scanSingle(s.db.QueryRowContext(ctx, query, args...), dest)
}

// Insert inserts a struct into table using its `db:` tags and returns the
// assigned row ID.
func (s *SQLiteDB) Insert(ctx context.Context, table string, record interface{}) (int64, error) {
	cols, marks, vals := insertValues(record)
	// Identifiers come from trusted struct tags; values stay parameterized.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := s.db.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}

// Upsert inserts record or, on a conflict over conflictCols, updates every
// other column from the incoming row.
func (s *SQLiteDB) Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error {
	cols, marks, vals := insertValues(record)
	var sets []string
	for _, c := range cols {
		if slices.Contains(conflictCols, c) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	// Identifiers come from trusted struct tags; values stay parameterized.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(marks, ", "),
		strings.Join(conflictCols, ", "),
		strings.Join(sets, ", "),
	)
	_, err := s.db.ExecContext(ctx, query, vals...)
	return err
}
