// Package specs samples host capacity figures. The node logs a snapshot
// periodically and exposes the latest one on its diagnostics endpoint, so an
// operator can correlate heartbeat backpressure with actual machine load.
package specs

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
)

// Snapshot is a point-in-time capacity reading.
type Snapshot struct {
	Timestamp      int64   `json:"timestamp"`
	NumCPU         int     `json:"num_cpu"`
	CPUPercent     float64 `json:"cpu_percent"`
	Load1          float64 `json:"load_1"`
	MemTotalBytes  uint64  `json:"mem_total_bytes"`
	MemUsedBytes   uint64  `json:"mem_used_bytes"`
	MemUsedPercent float64 `json:"mem_used_percent"`
}

// Take samples the host. Readings that fail are left at zero rather than
// failing the whole snapshot; partial data is still useful for diagnostics.
func Take() *Snapshot {
	s := &Snapshot{
		Timestamp: time.Now().UnixMilli(),
		NumCPU:    runtime.NumCPU(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	}

	if avg, err := load.Avg(); err == nil {
		s.Load1 = avg.Load1
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemTotalBytes = vm.Total
		s.MemUsedBytes = vm.Used
		s.MemUsedPercent = vm.UsedPercent
	}

	return s
}
