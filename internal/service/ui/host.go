package ui

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type HostStats struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsed    uint64
	MemoryTotal   uint64
}

// ReadHostStats samples CPU and memory usage of the machine.
func ReadHostStats(ctx context.Context) (HostStats, error) {
	var stats HostStats

	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return stats, fmt.Errorf("cpu usage: %w", err)
	}
	if len(percentages) == 0 {
		return stats, fmt.Errorf("could not get CPU usage")
	}
	stats.CPUPercent = percentages[0]

	virtualMem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("memory usage: %w", err)
	}
	stats.MemoryPercent = virtualMem.UsedPercent
	stats.MemoryUsed = virtualMem.Used
	stats.MemoryTotal = virtualMem.Total
	return stats, nil
}
