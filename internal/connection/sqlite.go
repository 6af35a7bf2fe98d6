package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore serves connections from a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the connection table at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS connection (
			conn_id TEXT PRIMARY KEY,
			conn_type TEXT,
			host TEXT,
			extra TEXT
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get implements Getter.
func (s *SQLiteStore) Get(ctx context.Context, connID string) (*Connection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT conn_id, conn_type, host, extra FROM connection WHERE conn_id = ?`, connID)

	var c Connection
	var connType, host, extra sql.NullString
	if err := row.Scan(&c.ID, &connType, &host, &extra); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(connID)
		}
		return nil, fmt.Errorf("query connection: %w", err)
	}
	c.Type = connType.String
	c.Host = host.String
	c.Extra = extra.String

	return &c, nil
}

// Put inserts or replaces a connection.
func (s *SQLiteStore) Put(ctx context.Context, c Connection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connection (conn_id, conn_type, host, extra)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conn_id) DO UPDATE SET
			conn_type = excluded.conn_type,
			host = excluded.host,
			extra = excluded.extra
	`, c.ID, c.Type, c.Host, c.Extra)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
