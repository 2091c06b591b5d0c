package api

import "net/http"

// Register wires all API routes onto the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleOverallHealth)
	mux.HandleFunc("GET /api/health/{service}", h.handleServiceHealth)
	mux.HandleFunc("GET /api/incidents", h.handleIncidents)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)
	mux.HandleFunc("POST /api/recovery/{service}", h.handleRecovery)
	mux.HandleFunc("POST /api/circuit-breaker/{service}/reset", h.handleBreakerReset)
}
