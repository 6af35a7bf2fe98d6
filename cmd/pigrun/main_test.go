package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/amread/airflow/internal/audit"
	"github.com/amread/airflow/internal/config"
)

func TestForwardSignals_KillsOnEverySignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal)
	var kills atomic.Int32
	done := make(chan struct{})
	go func() {
		forwardSignals(ctx, sigCh, func() { kills.Add(1) })
		close(done)
	}()

	// Unbuffered sends complete only once the loop has taken the signal.
	sigCh <- syscall.SIGINT
	sigCh <- syscall.SIGTERM
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("forwardSignals did not return after cancel")
	}
	if got := kills.Load(); got != 2 {
		t.Errorf("kill called %d times, want 2", got)
	}
}

func TestPrintHistory(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []audit.Entry{
		{RunID: "r2", Timestamp: ts, ConnID: "pig_cli_default", Command: "pig -f b", ExitCode: 1, DurationMs: 20, OutputBytes: 18},
		{RunID: "r1", Timestamp: ts, ConnID: "pig_cli_default", Command: "pig -f a", DurationMs: 10, OutputBytes: 9},
	}

	var buf bytes.Buffer
	if err := printHistory(&buf, entries); err != nil {
		t.Fatalf("printHistory() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	want := "2024-05-01T12:00:00Z\tr2\tpig_cli_default\texit=1\t20ms\t18B\tpig -f b"
	if lines[0] != want {
		t.Errorf("line 0 = %q, want %q", lines[0], want)
	}
	if !strings.Contains(lines[1], "r1") || !strings.Contains(lines[1], "exit=0") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestShowHistory(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "pigrun.yaml")

	l, err := audit.NewSQLiteLogger(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteLogger() error = %v", err)
	}
	for _, id := range []string{"r1", "r2", "r3"} {
		if err := l.Log(context.Background(), audit.Entry{RunID: id, Timestamp: time.Now(), ConnID: "c", Command: "pig -f " + id}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	l.Close()

	cfg := &config.Config{Audit: config.AuditConfig{Database: "runs.db"}}

	var buf bytes.Buffer
	if err := showHistory(cfg, configPath, 2, &buf); err != nil {
		t.Fatalf("showHistory() error = %v", err)
	}
	out := buf.String()
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("showHistory() printed %d lines, want 2:\n%s", n, out)
	}
	if !strings.Contains(out, "r3") || strings.Contains(out, "\tr1\t") {
		t.Errorf("showHistory() = %q, want the two newest runs", out)
	}
}

func TestShowHistory_NoDatabase(t *testing.T) {
	err := showHistory(&config.Config{}, "pigrun.yaml", 5, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "audit.database") {
		t.Errorf("showHistory() error = %v, want audit.database not configured", err)
	}
}
