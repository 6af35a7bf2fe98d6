package status

import (
	"context"
	"os"
	"testing"
)

func TestGopsutilCollector_Process(t *testing.T) {
	c := NewGopsutilCollector()

	m, err := c.Process(context.Background(), int32(os.Getpid()))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if m.PID != int32(os.Getpid()) {
		t.Errorf("PID = %d, want %d", m.PID, os.Getpid())
	}
	if !m.Running {
		t.Error("Running = false for the test process")
	}
	if m.RSSBytes == 0 {
		t.Error("RSSBytes = 0, want non-zero")
	}
}

func TestGopsutilCollector_System(t *testing.T) {
	m, err := NewGopsutilCollector().System(context.Background())
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}
	if m.MemoryTotal == 0 {
		t.Error("MemoryTotal = 0")
	}
}
