package handlers

import (
	"net/http"
	"time"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	// ready reports whether the engine connection works; nil means always
	// ready.
	ready func() error
}

// NewHealthHandler creates a health handler
func NewHealthHandler(ready func() error) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// Healthz handles liveness checks
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz handles readiness checks
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}
