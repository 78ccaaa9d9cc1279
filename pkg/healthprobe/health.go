// Package healthprobe provides the liveness and readiness handlers mounted
// on the HTTP server.
package healthprobe

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker tracks per-component readiness. The process is ready once
// every registered component has reported ready.
type HealthChecker struct {
	startTime time.Time

	mu         sync.Mutex
	components map[string]bool
}

// New creates a HealthChecker with no registered components; a bare checker
// reports ready.
func New() *HealthChecker {
	return &HealthChecker{
		startTime:  time.Now(),
		components: make(map[string]bool),
	}
}

// SetReady reports one component's readiness. Components register implicitly
// on first report.
func (h *HealthChecker) SetReady(component string, ready bool) {
	h.mu.Lock()
	h.components[component] = ready
	h.mu.Unlock()
}

func (h *HealthChecker) notReady() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var waiting []string
	for name, ready := range h.components {
		if !ready {
			waiting = append(waiting, name)
		}
	}
	sort.Strings(waiting)
	return waiting
}

// HealthResponse is the body of both probe endpoints.
type HealthResponse struct {
	Status  string   `json:"status"`
	Uptime  string   `json:"uptime"`
	Waiting []string `json:"waiting,omitempty"`
}

// Health returns the liveness handler: 200 whenever the process runs.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready returns the readiness handler: 503 while any component is waiting.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		waiting := h.notReady()
		if len(waiting) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "not_ready",
				Uptime:  time.Since(h.startTime).String(),
				Waiting: waiting,
			})
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
