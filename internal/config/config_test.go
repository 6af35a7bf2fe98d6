package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pigrun.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultConnID != DefaultConnID {
		t.Errorf("DefaultConnID = %q, want %q", cfg.DefaultConnID, DefaultConnID)
	}
	if cfg.Pig.Binary != "pig" {
		t.Errorf("Pig.Binary = %q, want pig", cfg.Pig.Binary)
	}
	if cfg.Connections.File != "./connections.yaml" {
		t.Errorf("Connections.File = %q", cfg.Connections.File)
	}
	if cfg.Audit.Database != "" {
		t.Errorf("Audit.Database = %q, want disabled", cfg.Audit.Database)
	}
	if cfg.LogLevel() != slog.LevelInfo {
		t.Errorf("LogLevel() = %v, want info", cfg.LogLevel())
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv("PIGRUN_TEST_TOKEN", "123:abc")

	path := writeConfig(t, `
default_conn_id: warehouse
pig:
  binary: /opt/pig/bin/pig
  extra_args: ["-x", "local"]
audit:
  database: runs.db
telegram:
  token: ${PIGRUN_TEST_TOKEN}
  chat_ids: [42]
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultConnID != "warehouse" {
		t.Errorf("DefaultConnID = %q, want warehouse", cfg.DefaultConnID)
	}
	if cfg.Pig.Binary != "/opt/pig/bin/pig" {
		t.Errorf("Pig.Binary = %q", cfg.Pig.Binary)
	}
	if len(cfg.Pig.ExtraArgs) != 2 || cfg.Pig.ExtraArgs[1] != "local" {
		t.Errorf("Pig.ExtraArgs = %q", cfg.Pig.ExtraArgs)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("Telegram.Token = %q, want expanded value", cfg.Telegram.Token)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, want debug", cfg.LogLevel())
	}
	if got, want := cfg.ExpandPath(path, cfg.Audit.Database), filepath.Join(filepath.Dir(path), "runs.db"); got != want {
		t.Errorf("ExpandPath() = %q, want %q", got, want)
	}
}

func TestLoad_TelegramWithoutChats(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: abc\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for telegram token without chat ids")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "pig: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("PIGRUN_A", "alpha")

	tests := []struct {
		in   string
		want string
	}{
		{"${PIGRUN_A}", "alpha"},
		{"$PIGRUN_A/x", "alpha/x"},
		{"${PIGRUN_UNSET_VAR}", "${PIGRUN_UNSET_VAR}"},
		{"no vars", "no vars"},
	}

	for _, tt := range tests {
		if got := ExpandEnv(tt.in); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	cfg := &Config{}
	if got := cfg.ExpandPath("/etc/pigrun/pigrun.yaml", "/abs/path.db"); got != "/abs/path.db" {
		t.Errorf("absolute path changed to %q", got)
	}
	if got := cfg.ExpandPath("/etc/pigrun/pigrun.yaml", ""); got != "" {
		t.Errorf("empty path changed to %q", got)
	}
}
