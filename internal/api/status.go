package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/nerrad567/luke-core/internal/node"
)

// statusCheckTimeout bounds each backend health check.
const statusCheckTimeout = 2 * time.Second

// SystemStatus represents the /api/v1/status response.
type SystemStatus struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Gateway       string            `json:"gateway"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	WebSocket     WSMetrics         `json:"websocket"`
	Nodes         node.Stats        `json:"nodes"`
	Observations  []string          `json:"observations"`
	Backends      map[string]string `json:"backends"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// handleStatus returns runtime and backend status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Gateway:       s.service.Service,
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Nodes:        s.registry.GetStats(),
		Observations: []string{},
		Backends:     make(map[string]string, len(s.backends)),
	}

	if s.hub != nil {
		status.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	for _, o := range s.dashboard.Snapshot().Observations {
		status.Observations = append(status.Observations, o.URL+" "+o.State)
	}
	sort.Strings(status.Observations)

	for name, hc := range s.backends {
		ctx, cancel := context.WithTimeout(r.Context(), statusCheckTimeout)
		if err := hc.HealthCheck(ctx); err != nil {
			status.Backends[name] = err.Error()
		} else {
			status.Backends[name] = "ok"
		}
		cancel()
	}

	writeJSON(w, http.StatusOK, status)
}
