package api

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemInfo is a snapshot of host resources for the operator dashboard
type SystemInfo struct {
	CPUCount       int     `json:"cpu_count"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryTotal    uint64  `json:"memory_total"`
	MemoryUsed     uint64  `json:"memory_used"`
	MemoryPercent  float64 `json:"memory_percent"`
	DiskTotal      uint64  `json:"disk_total"`
	DiskUsed       uint64  `json:"disk_used"`
	DiskPercent    float64 `json:"disk_percent"`
	GoroutineCount int     `json:"goroutine_count"`
}

// System reports host CPU, memory and disk usage
func (h *Handlers) System(c *gin.Context) {
	info := SystemInfo{GoroutineCount: runtime.NumGoroutine()}

	if counts, err := cpu.Counts(true); err == nil {
		info.CPUCount = counts
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryUsed = vm.Used
		info.MemoryPercent = vm.UsedPercent
	}
	if usage, err := disk.Usage("/"); err == nil {
		info.DiskTotal = usage.Total
		info.DiskUsed = usage.Used
		info.DiskPercent = usage.UsedPercent
	}

	c.JSON(http.StatusOK, info)
}
