package monitoring

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steadyp/steady-client/internal/breaker"
)

// Handler exposes health and metrics HTTP endpoints for tools embedding the
// client.
type Handler struct {
	breakers []*breaker.Breaker
}

// NewHandler creates a monitoring handler reporting on the given breakers.
func NewHandler(breakers ...*breaker.Breaker) *Handler {
	return &Handler{breakers: breakers}
}

// RegisterRoutes registers the monitoring HTTP endpoints
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", h.HealthHandler)
}

// HealthHandler reports degraded (503) while any breaker is open.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	healthy := true
	deps := make(map[string]string, len(h.breakers))
	for _, b := range h.breakers {
		state := b.State()
		deps[b.Name()] = state.String()
		if state == breaker.StateOpen {
			healthy = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"healthy":      healthy,
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
