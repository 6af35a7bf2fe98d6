// Package status provides process and host metrics collection.
package status

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMetrics holds resource usage of a single process.
type ProcessMetrics struct {
	PID        int32
	CPUPercent float64
	RSSBytes   uint64
	NumThreads int32
	Running    bool
}

// Metrics holds host resource usage.
type Metrics struct {
	CPUPercent    float64
	MemoryUsed    uint64
	MemoryTotal   uint64
	MemoryPercent float64
	DiskUsed      uint64
	DiskTotal     uint64
	DiskPercent   float64
}

// Collector gathers metrics.
type Collector interface {
	Process(ctx context.Context, pid int32) (*ProcessMetrics, error)
	System(ctx context.Context) (*Metrics, error)
}

// GopsutilCollector uses gopsutil for metrics.
type GopsutilCollector struct {
	diskPath string
}

// NewGopsutilCollector creates a collector.
func NewGopsutilCollector() *GopsutilCollector {
	return &GopsutilCollector{
		diskPath: "/",
	}
}

// Process gathers usage of the process with the given pid.
func (c *GopsutilCollector) Process(ctx context.Context, pid int32) (*ProcessMetrics, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("find process %d: %w", pid, err)
	}

	m := ProcessMetrics{PID: pid}

	running, err := p.IsRunningWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get running state: %w", err)
	}
	m.Running = running

	cpuPercent, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get cpu: %w", err)
	}
	m.CPUPercent = cpuPercent

	memInfo, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	m.RSSBytes = memInfo.RSS

	threads, err := p.NumThreadsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get threads: %w", err)
	}
	m.NumThreads = threads

	return &m, nil
}

// System gathers current host metrics.
func (c *GopsutilCollector) System(ctx context.Context) (*Metrics, error) {
	var m Metrics

	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("get cpu: %w", err)
	}
	if len(cpuPercent) > 0 {
		m.CPUPercent = cpuPercent[0]
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	m.MemoryUsed = memInfo.Used
	m.MemoryTotal = memInfo.Total
	m.MemoryPercent = memInfo.UsedPercent

	diskInfo, err := disk.UsageWithContext(ctx, c.diskPath)
	if err != nil {
		return nil, fmt.Errorf("get disk: %w", err)
	}
	m.DiskUsed = diskInfo.Used
	m.DiskTotal = diskInfo.Total
	m.DiskPercent = diskInfo.UsedPercent

	return &m, nil
}
