package connection

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/amread/airflow/internal/config"
)

// yamlFile is the on-disk layout of a connections file:
//
//	connections:
//	  - conn_id: pig_cli_default
//	    conn_type: pig_cli
//	    extra: '{"pig_properties": "-Dpig.tmpfilecompression=true"}'
type yamlFile struct {
	Connections []Connection `yaml:"connections"`
}

// YAMLStore serves connections read from a YAML file.
type YAMLStore struct {
	byID map[string]Connection
}

// LoadYAML reads connections from path. ${VAR} references are expanded from
// the environment. A missing file yields an empty store.
func LoadYAML(path string) (*YAMLStore, error) {
	s := &YAMLStore{byID: make(map[string]Connection)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read connections file: %w", err)
	}

	var f yamlFile
	if err := yaml.Unmarshal([]byte(config.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parse connections file: %w", err)
	}

	for i, c := range f.Connections {
		if c.ID == "" {
			return nil, fmt.Errorf("connection %d: conn_id is required", i)
		}
		s.byID[c.ID] = c
	}

	return s, nil
}

// Get implements Getter.
func (s *YAMLStore) Get(ctx context.Context, connID string) (*Connection, error) {
	c, ok := s.byID[connID]
	if !ok {
		return nil, notFound(connID)
	}
	return &c, nil
}

// Len returns the number of loaded connections.
func (s *YAMLStore) Len() int {
	return len(s.byID)
}
