// Package api serves the operational HTTP surface of the live server.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/fallsense/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the ops HTTP routes.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	metrics       http.Handler
}

// NewServer creates a new ops server backed by statsProvider.
func NewServer(statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(statsProvider),
		statsHandler:  NewStatsHandler(statsProvider),
		metrics:       promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("/metrics", s.metrics)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
