package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/kpihub/scmscan/internal/config"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLDB implements DB using go-sql-driver/mysql, for deployments sharing
// scan data across hosts.
type MySQLDB struct {
	db *sql.DB
}

// NewMySQL opens a MySQL connection using cfg.DSN. parseTime is forced on so
// DATETIME columns scan into time.Time.
func NewMySQL(cfg config.DatabaseConfig) (*MySQLDB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required when driver is mysql")
	}

	dsn := cfg.DSN
	if !strings.Contains(dsn, "parseTime") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	m := &MySQLDB{db: db}
	if err := m.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return m, nil
}

func (m *MySQLDB) Ping(ctx context.Context) error { return m.db.PingContext(ctx) }

func (m *MySQLDB) Close() error { return m.db.Close() }

func (m *MySQLDB) Migrate(ctx context.Context) error {
	return runMigrations(ctx, m.db, "mysql", `CREATE TABLE IF NOT EXISTS schema_migrations (
		id         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		filename   VARCHAR(255) NOT NULL UNIQUE,
		applied_at VARCHAR(64)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`)
}

func (m *MySQLDB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return collectRows(rows, dest)
}

func (m *MySQLDB) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return scanSingle(m.db.QueryRowContext(ctx, query, args...), dest)
}

func (m *MySQLDB) Insert(ctx context.Context, table string, record interface{}) (int64, error) {
	cols, marks, vals := insertValues(record)
	// Identifiers come from trusted struct tags; values stay parameterized.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := m.db.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}

// Upsert relies on the table's unique key over conflictCols; MySQL has no
// explicit conflict target, so the columns themselves only decide which
// fields get refreshed.
func (m *MySQLDB) Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error {
	cols, marks, vals := insertValues(record)
	var sets []string
	for _, c := range cols {
		if slices.Contains(conflictCols, c) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
	}

	// Identifiers come from trusted struct tags; values stay parameterized.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(marks, ", "),
		strings.Join(sets, ", "),
	)
	_, err := m.db.ExecContext(ctx, query, vals...)
	return err
}
