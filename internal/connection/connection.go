// Package connection resolves connection identifiers to connection metadata.
// Lookups are tried against environment variables, a YAML file and a SQLite
// database, in that order.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound is returned when no store knows the connection identifier.
var ErrNotFound = errors.New("connection not found")

// Connection holds the metadata of a single connection.
type Connection struct {
	ID    string `yaml:"conn_id"`
	Type  string `yaml:"conn_type"`
	Host  string `yaml:"host"`
	Extra string `yaml:"extra"` // JSON object
}

// ExtraDejson decodes Extra into a map. An empty or malformed extra yields an
// empty map.
func (c *Connection) ExtraDejson() map[string]any {
	extra := make(map[string]any)
	if c.Extra == "" {
		return extra
	}
	if err := json.Unmarshal([]byte(c.Extra), &extra); err != nil {
		slog.Warn("failed parsing connection extra", "conn_id", c.ID, "error", err)
		return make(map[string]any)
	}
	return extra
}

// Getter looks up a connection by identifier.
type Getter interface {
	Get(ctx context.Context, connID string) (*Connection, error)
}

// Chain tries each Getter in order and returns the first match.
type Chain []Getter

// Get implements Getter. Errors other than ErrNotFound stop the search.
func (c Chain) Get(ctx context.Context, connID string) (*Connection, error) {
	for _, g := range c {
		conn, err := g.Get(ctx, connID)
		if err == nil {
			return conn, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, notFound(connID)
}

func notFound(connID string) error {
	return fmt.Errorf("%q: %w", connID, ErrNotFound)
}
