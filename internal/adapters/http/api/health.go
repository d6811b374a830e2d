package api

import (
	"net/http"
)

// HealthHandler reports whether the live pipeline is serving.
type HealthHandler struct {
	statsProvider StatsProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(statsProvider StatsProvider) *HealthHandler {
	return &HealthHandler{statsProvider: statsProvider}
}

type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth handles GET /healthz. It answers 503 until the service has
// bound its socket and loaded its model.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethod)
		return
	}
	if started, _ := h.statsProvider.GetStats()["started"].(bool); !started {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
