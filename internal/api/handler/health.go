package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

var startTime = time.Now()

// ProviderReporter lists registered providers with their health.
type ProviderReporter interface {
	Providers() []resolver.ProviderStatus
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	providers ProviderReporter
	tools     map[string]bool
	scratch   string
}

// NewHealthHandler creates a new health handler. tools reports which
// local helpers were found; scratch is the directory temporary audio is
// written to.
func NewHealthHandler(providers ProviderReporter, tools map[string]bool) *HealthHandler {
	return &HealthHandler{
		providers: providers,
		tools:     tools,
		scratch:   os.TempDir(),
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status       string          `json:"status"`
	Timestamp    string          `json:"timestamp"`
	Capabilities int             `json:"capabilities,omitempty"`
	Degraded     []string        `json:"degraded,omitempty"`
	Tools        map[string]bool `json:"tools,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. The gateway is ready once
// providers are registered; capabilities whose providers are all in
// cooldown are reported as degraded but do not fail the probe, because
// the engine still tries them.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	statuses := h.providers.Providers()
	if len(statuses) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	available := make(map[domain.Capability]bool)
	var order []domain.Capability
	for _, st := range statuses {
		if _, seen := available[st.Capability]; !seen {
			order = append(order, st.Capability)
			available[st.Capability] = false
		}
		if st.Available {
			available[st.Capability] = true
		}
	}

	resp := HealthResponse{
		Status:       "ok",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Capabilities: len(order),
		Tools:        h.tools,
	}
	for _, c := range order {
		if !available[c] {
			resp.Degraded = append(resp.Degraded, string(c))
		}
	}
	if len(resp.Degraded) > 0 {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// CapabilityProviders groups provider health under one capability.
type CapabilityProviders struct {
	Capability domain.Capability         `json:"capability"`
	Providers  []resolver.ProviderStatus `json:"providers"`
}

// Providers handles GET /api/v1/providers - per-provider health in
// preference order.
func (h *HealthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	var out []CapabilityProviders
	for _, st := range h.providers.Providers() {
		if n := len(out); n == 0 || out[n-1].Capability != st.Capability {
			out = append(out, CapabilityProviders{Capability: st.Capability})
		}
		last := &out[len(out)-1]
		last.Providers = append(last.Providers, st)
	}
	if out == nil {
		out = []CapabilityProviders{}
	}
	writeJSON(w, http.StatusOK, out)
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime         int64   `json:"uptime_seconds"`
	UptimeHuman    string  `json:"uptime_human"`
	MemAllocMB     int64   `json:"mem_alloc_mb"`
	MemSysMB       int64   `json:"mem_sys_mb"`
	MemHeapMB      int64   `json:"mem_heap_mb"`
	NumGoroutines  int     `json:"num_goroutines"`
	NumCPU         int     `json:"num_cpu"`
	CPUPercent     float64 `json:"cpu_percent"`
	DiskUsedBytes  int64   `json:"disk_used_bytes"`
	DiskFreeBytes  int64   `json:"disk_free_bytes"`
	DiskTotalBytes int64   `json:"disk_total_bytes"`
	DiskUsedPct    float64 `json:"disk_used_pct"`
	ScratchPath    string  `json:"scratch_path"`
}

// Stats handles GET /api/v1/stats - process and scratch disk statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)
	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		MemHeapMB:     int64(m.HeapAlloc / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		CPUPercent:    getCPUUsage(),
		ScratchPath:   h.scratch,
	}
	stats.DiskTotalBytes, stats.DiskFreeBytes, stats.DiskUsedBytes, stats.DiskUsedPct = getDiskStats(h.scratch)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
