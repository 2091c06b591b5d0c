package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/breaker"
	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/incident"
	"github.com/nholik/healthwatch/internal/insight"
	"github.com/nholik/healthwatch/internal/monitor"
	"github.com/nholik/healthwatch/internal/recovery"
)

const defaultIncidentPageSize = 20

// HealthReader exposes the monitor's view for query endpoints.
type HealthReader interface {
	Snapshot() monitor.View
	Registered(service string) bool
	ProbeNow(ctx context.Context, service string) (health.ServiceHealth, error)
	TriggerManual(ctx context.Context, service string) (incident.Incident, error)
}

// IncidentLister pages through recorded incidents.
type IncidentLister interface {
	List(page, limit int) ([]incident.Incident, int)
}

// InsightReader returns the latest predictive insight batch.
type InsightReader interface {
	Latest() []insight.Insight
}

// BreakerAdmin exposes operator control over circuit breakers.
type BreakerAdmin interface {
	Reset(service string)
	Get(service string) breaker.Status
}

// Handlers serves the HTTP query and command surface.
type Handlers struct {
	logger    zerolog.Logger
	monitor   HealthReader
	incidents IncidentLister
	insights  InsightReader
	breakers  BreakerAdmin
}

// NewHandlers constructs the API handler set.
func NewHandlers(logger zerolog.Logger, monitor HealthReader, incidents IncidentLister, insights InsightReader, breakers BreakerAdmin) *Handlers {
	return &Handlers{
		logger:    logger,
		monitor:   monitor,
		incidents: incidents,
		insights:  insights,
		breakers:  breakers,
	}
}

func (h *Handlers) handleOverallHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}

type serviceHealthResponse struct {
	Service        health.ServiceHealth `json:"service"`
	CircuitBreaker breaker.Status       `json:"circuit_breaker"`
}

func (h *Handlers) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	current, err := h.monitor.ProbeNow(r.Context(), service)
	if err != nil {
		if errors.Is(err, monitor.ErrUnknownService) {
			writeError(w, http.StatusNotFound, "unknown service")
			return
		}
		h.logger.Error().Err(err).Str("service", service).Msg("service health request failed")
		writeError(w, http.StatusInternalServerError, "probe failed")
		return
	}

	writeJSON(w, http.StatusOK, serviceHealthResponse{
		Service:        current,
		CircuitBreaker: h.breakers.Get(service),
	})
}

type incidentListResponse struct {
	Incidents []incident.Incident `json:"incidents"`
	Page      int                 `json:"page"`
	Limit     int                 `json:"limit"`
	Total     int                 `json:"total"`
}

func (h *Handlers) handleIncidents(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", defaultIncidentPageSize)
	if page < 1 || limit < 1 {
		writeError(w, http.StatusBadRequest, "page and limit must be positive")
		return
	}

	incidents, total := h.incidents.List(page, limit)
	writeJSON(w, http.StatusOK, incidentListResponse{
		Incidents: incidents,
		Page:      page,
		Limit:     limit,
		Total:     total,
	})
}

type predictionsResponse struct {
	Predictions []insight.Insight `json:"predictions"`
}

func (h *Handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, predictionsResponse{Predictions: h.insights.Latest()})
}

func (h *Handlers) handleRecovery(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	inc, err := h.monitor.TriggerManual(r.Context(), service)
	switch {
	case errors.Is(err, monitor.ErrUnknownService):
		writeError(w, http.StatusNotFound, "unknown service")
		return
	case errors.Is(err, recovery.ErrRecoveryInFlight):
		writeError(w, http.StatusConflict, "recovery already in progress")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("service", service).Msg("manual recovery request failed")
		writeError(w, http.StatusInternalServerError, "recovery failed to start")
		return
	}

	writeJSON(w, http.StatusAccepted, inc)
}

func (h *Handlers) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	// Reset would otherwise mint a fresh breaker for any name it is handed.
	if !h.monitor.Registered(service) {
		writeError(w, http.StatusNotFound, "unknown service")
		return
	}

	h.breakers.Reset(service)
	h.logger.Info().Str("service", service).Msg("circuit breaker reset")
	writeJSON(w, http.StatusOK, h.breakers.Get(service))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
