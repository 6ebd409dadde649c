package database

import (
	"context"
	"fmt"

	"github.com/kpihub/scmscan/internal/config"
)

// DB is the storage interface the scan engine persists through.
// Implementations exist for SQLite (default) and MySQL; both scan rows
// into structs via `db:` tags.
type DB interface {
	// Select executes a query and scans all rows into dest (slice pointer).
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Get executes a query expected to return a single row and scans into dest.
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Insert inserts a struct-tagged record into table and returns the new row ID.
	Insert(ctx context.Context, table string, record interface{}) (int64, error)

	// Upsert inserts or updates based on the conflict columns. Scan writes must
	// be re-runnable, so every bulk write goes through this.
	Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// New returns a DB implementation matching cfg.Driver.
// SQLite is the default when the driver is empty.
func New(cfg config.DatabaseConfig) (DB, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql)", cfg.Driver)
	}
}
