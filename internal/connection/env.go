package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// EnvPrefix is prepended to the upper-cased connection id to form the
// variable name, e.g. AIRFLOW_CONN_PIG_CLI_DEFAULT.
const EnvPrefix = "AIRFLOW_CONN_"

// EnvStore resolves connections from URI-valued environment variables:
//
//	AIRFLOW_CONN_PIG_CLI_DEFAULT=pig-cli://localhost?pig_properties=-Dpig.tmpfilecompression%3Dtrue
//
// The scheme, with dashes turned into underscores, becomes the connection type.
// Query parameters become extra keys.
type EnvStore struct{}

// Get implements Getter.
func (EnvStore) Get(ctx context.Context, connID string) (*Connection, error) {
	raw, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(connID))
	if !ok || raw == "" {
		return nil, notFound(connID)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s%s: %w", EnvPrefix, strings.ToUpper(connID), err)
	}

	conn := &Connection{
		ID:   connID,
		Type: strings.ReplaceAll(u.Scheme, "-", "_"),
		Host: u.Hostname(),
	}

	query := u.Query()
	if len(query) > 0 {
		extra := make(map[string]string, len(query))
		for k := range query {
			extra[k] = query.Get(k)
		}
		data, err := json.Marshal(extra)
		if err != nil {
			return nil, fmt.Errorf("encode extra: %w", err)
		}
		conn.Extra = string(data)
	}

	return conn, nil
}
