// Package store persists per-learner per-day metric rows with field-level
// merge semantics.
//
// Two independent cadences (a frequent shallow poll and a daily deep fetch)
// write to the same (username, date) keys. Upsert therefore merges at the
// field level: a write only touches the columns present in the incoming
// partial row, so a shallow count write never erases deep-only columns and
// re-applying an identical write changes nothing. Rows are never physically
// deleted by normal operation.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"  // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver (pure Go)
)

// Backend selects the database engine backing the store.
type Backend string

// Supported backends.
const (
	SQLiteBackend     Backend = "sqlite"
	MySQLBackend      Backend = "mysql"
	PostgreSQLBackend Backend = "postgresql"
)

const tableName = "daily_metrics"

// Store is a metrics store over a SQL database.
type Store struct {
	db      *sql.DB
	backend Backend
}

// Open connects to the configured backend and ensures the metrics table
// exists. For SQLite, connStr is a file path (":memory:" works for tests);
// for MySQL, "user:pass@tcp(host:port)/dbname"; for PostgreSQL, a
// "host=... port=... dbname=..." string.
func Open(backend Backend, connStr string) (*Store, error) {
	var driverName string
	switch backend {
	case SQLiteBackend:
		driverName = "sqlite"
		if connStr == "" {
			connStr = "tracker.db"
		}
	case MySQLBackend:
		driverName = "mysql"
	case PostgreSQLBackend:
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported store backend: %q (want sqlite, mysql, or postgresql)", backend)
	}

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", backend, err)
	}
	if backend == SQLiteBackend {
		// A single connection avoids "database is locked" errors when two
		// scheduled runs overlap.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s store: %w", backend, err)
	}

	if _, err := db.Exec(createTableQuery(backend)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create %s table: %w", tableName, err)
	}

	return &Store{db: db, backend: backend}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTableQuery returns the CREATE TABLE statement for the backend.
func createTableQuery(backend Backend) string {
	switch backend {
	case MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				username VARCHAR(190) NOT NULL,
				date CHAR(10) NOT NULL,
				commits INT NOT NULL DEFAULT 0,
				prs_opened INT NOT NULL DEFAULT 0,
				prs_merged INT NOT NULL DEFAULT 0,
				issues_opened INT NOT NULL DEFAULT 0,
				issue_comments INT NOT NULL DEFAULT 0,
				review_comments_given INT NOT NULL DEFAULT 0,
				lines_added INT NOT NULL DEFAULT 0,
				lines_deleted INT NOT NULL DEFAULT 0,
				avg_merge_time_hours DOUBLE,
				rejection_rate DOUBLE,
				last_updated VARCHAR(32) NOT NULL,
				PRIMARY KEY (username, date)
			);
		`, tableName)

	case PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				username TEXT NOT NULL,
				date TEXT NOT NULL,
				commits INTEGER NOT NULL DEFAULT 0,
				prs_opened INTEGER NOT NULL DEFAULT 0,
				prs_merged INTEGER NOT NULL DEFAULT 0,
				issues_opened INTEGER NOT NULL DEFAULT 0,
				issue_comments INTEGER NOT NULL DEFAULT 0,
				review_comments_given INTEGER NOT NULL DEFAULT 0,
				lines_added INTEGER NOT NULL DEFAULT 0,
				lines_deleted INTEGER NOT NULL DEFAULT 0,
				avg_merge_time_hours DOUBLE PRECISION,
				rejection_rate DOUBLE PRECISION,
				last_updated TEXT NOT NULL,
				PRIMARY KEY (username, date)
			);
		`, tableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				username TEXT NOT NULL,
				date TEXT NOT NULL,
				commits INTEGER NOT NULL DEFAULT 0,
				prs_opened INTEGER NOT NULL DEFAULT 0,
				prs_merged INTEGER NOT NULL DEFAULT 0,
				issues_opened INTEGER NOT NULL DEFAULT 0,
				issue_comments INTEGER NOT NULL DEFAULT 0,
				review_comments_given INTEGER NOT NULL DEFAULT 0,
				lines_added INTEGER NOT NULL DEFAULT 0,
				lines_deleted INTEGER NOT NULL DEFAULT 0,
				avg_merge_time_hours REAL,
				rejection_rate REAL,
				last_updated TEXT NOT NULL,
				PRIMARY KEY (username, date)
			);
		`, tableName)
	}
}

// placeholders returns n parameter placeholders for the backend, starting
// at position start (PostgreSQL placeholders are positional).
func (s *Store) placeholders(start, n int) []string {
	out := make([]string, n)
	for i := range out {
		if s.backend == PostgreSQLBackend {
			out[i] = fmt.Sprintf("$%d", start+i)
		} else {
			out[i] = "?"
		}
	}
	return out
}

// Count returns the total number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// columnList joins column names for interpolation into a statement.
func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}
