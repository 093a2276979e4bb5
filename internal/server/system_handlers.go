package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemHealth is the payload of the health endpoint.
type systemHealth struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemUsedMB     float64 `json:"mem_used_mb"`
	MemPercent    float64 `json:"mem_percent"`
	Subscribers   int     `json:"stream_subscribers"`
}

func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	health := systemHealth{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startupTime).Seconds(),
		Subscribers:   s.hub.Count(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		health.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		health.MemUsedMB = float64(vm.Used) / 1024 / 1024
		health.MemPercent = vm.UsedPercent
	}

	s.respondJSON(w, http.StatusOK, health)
}
