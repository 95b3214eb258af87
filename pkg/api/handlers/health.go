package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the backing storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	storage Pinger
	started time.Time
}

// NewHealthHandler creates a new HealthHandler. storage may be nil, in
// which case readiness degrades to liveness.
func NewHealthHandler(storage Pinger) *HealthHandler {
	return &HealthHandler{storage: storage, started: time.Now()}
}

// Liveness handles GET /health: the process is up.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	WriteJSONOK(w, map[string]string{
		"status":     "ok",
		"started_at": h.started.UTC().Format(time.RFC3339),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
	})
}

// Readiness handles GET /health/ready: the process can serve traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": err.Error(),
			})
			return
		}
	}
	WriteJSONOK(w, map[string]string{"status": "ready"})
}
