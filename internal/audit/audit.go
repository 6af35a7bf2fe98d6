// Package audit provides pig run logging to SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry represents a single run log record.
type Entry struct {
	RunID       string
	Timestamp   time.Time
	ConnID      string
	Command     string
	ExitCode    int
	DurationMs  int64
	OutputBytes int
}

// Logger persists run records.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
	Close() error
}

// SQLiteLogger implements Logger using SQLite.
type SQLiteLogger struct {
	db *sql.DB
}

// NewSQLiteLogger creates a logger backed by SQLite.
func NewSQLiteLogger(dbPath string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteLogger{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS run_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			conn_id TEXT,
			command TEXT NOT NULL,
			exit_code INTEGER,
			duration_ms INTEGER,
			output_bytes INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_run_timestamp ON run_log(timestamp);
		CREATE INDEX IF NOT EXISTS idx_run_conn_id ON run_log(conn_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Log records a finished run.
func (l *SQLiteLogger) Log(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO run_log (run_id, timestamp, conn_id, command, exit_code, duration_ms, output_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := l.db.ExecContext(ctx, query,
		entry.RunID,
		entry.Timestamp,
		entry.ConnID,
		entry.Command,
		entry.ExitCode,
		entry.DurationMs,
		entry.OutputBytes,
	)
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}

	return nil
}

// Recent returns up to n of the most recent entries, newest first.
func (l *SQLiteLogger) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, timestamp, conn_id, command, exit_code, duration_ms, output_bytes
		FROM run_log
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query run log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.Timestamp, &e.ConnID, &e.Command,
			&e.ExitCode, &e.DurationMs, &e.OutputBytes); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close releases database resources.
func (l *SQLiteLogger) Close() error {
	return l.db.Close()
}

// NopLogger is a no-op logger for testing or when the run log is disabled.
type NopLogger struct{}

// Log does nothing.
func (NopLogger) Log(ctx context.Context, entry Entry) error {
	return nil
}

// Close does nothing.
func (NopLogger) Close() error {
	return nil
}
