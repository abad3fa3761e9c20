// Package monitor collects load figures for a running room server.
package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// RoomCounter reports rooms and seated players.
type RoomCounter interface {
	Count() int
	Players() int
}

// ConnCounter reports the number of open gateway connections.
type ConnCounter interface {
	Count() int
}

// Stats is a point-in-time load report.
type Stats struct {
	Rooms         int     `json:"rooms"`
	Players       int     `json:"players"`
	Connections   int     `json:"connections"`
	Goroutines    int     `json:"goroutines"`
	HeapBytes     uint64  `json:"heapBytes"`
	MemoryPercent float64 `json:"memoryPercent"`
	CPUPercent    float64 `json:"cpuPercent"`
	Uptime        string  `json:"uptime"`
}

// Collect gathers room counts and host load. conns may be nil. Host
// figures that cannot be read are left at zero.
func Collect(ctx context.Context, rooms RoomCounter, conns ConnCounter, started time.Time) Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := Stats{
		Rooms:      rooms.Count(),
		Players:    rooms.Players(),
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  ms.HeapAlloc,
		Uptime:     time.Since(started).Round(time.Second).String(),
	}
	if conns != nil {
		stats.Connections = conns.Count()
	}

	// System-wide figures, not just this process.
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = vm.UsedPercent
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	return stats
}
