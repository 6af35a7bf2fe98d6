// Package config handles pigrun configuration loading from YAML files.
// Supports environment variable expansion in string values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConnID is used when neither flags nor config name a connection.
const DefaultConnID = "pig_cli_default"

// Config holds all application configuration.
type Config struct {
	DefaultConnID string            `yaml:"default_conn_id"`
	Pig           PigConfig         `yaml:"pig"`
	Connections   ConnectionsConfig `yaml:"connections"`
	Audit         AuditConfig       `yaml:"audit"`
	Telegram      TelegramConfig    `yaml:"telegram"`
	Log           LogConfig         `yaml:"log"`
}

// PigConfig controls how the pig binary is invoked.
type PigConfig struct {
	Binary    string   `yaml:"binary"`
	ExtraArgs []string `yaml:"extra_args"` // appended after -f <script>
	TempDir   string   `yaml:"temp_dir"`   // parent of per-run directories; empty means os.TempDir()
}

// ConnectionsConfig points at the connection stores.
type ConnectionsConfig struct {
	File     string `yaml:"file"`
	Database string `yaml:"database"`
}

// AuditConfig holds run log settings. An empty Database disables the log.
type AuditConfig struct {
	Database string `yaml:"database"`
}

// TelegramConfig holds run notification settings. An empty Token disables them.
type TelegramConfig struct {
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from the specified YAML file path.
// A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults applies default values for unset fields.
func (c *Config) setDefaults() error {
	if c.DefaultConnID == "" {
		c.DefaultConnID = DefaultConnID
	}

	if c.Pig.Binary == "" {
		c.Pig.Binary = "pig"
	}

	if c.Connections.File == "" {
		c.Connections.File = "./connections.yaml"
	}

	if c.Telegram.Token != "" && len(c.Telegram.ChatIDs) == 0 {
		return fmt.Errorf("telegram.chat_ids must have at least one entry when telegram.token is set")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	return nil
}

// LogLevel maps Log.Level to a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ExpandPath resolves a path relative to the config file directory.
func (c *Config) ExpandPath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(base), path)
}

// envVarPattern matches ${VAR} or $VAR patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandEnv replaces ${VAR} and $VAR with environment variable values.
// Unset variables are left as written.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if match[1] == '{' {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}
