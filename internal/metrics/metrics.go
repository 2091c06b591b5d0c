package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for healthwatch.
type Metrics struct {
	registry                 *prometheus.Registry
	cycleDurationSeconds     prometheus.Histogram
	servicesTotal            *prometheus.GaugeVec
	probesTotal              prometheus.Counter
	probeFailuresTotal       prometheus.Counter
	breakerState             *prometheus.GaugeVec
	recoveriesTotal          *prometheus.CounterVec
	incidentsTotal           *prometheus.CounterVec
	insightsGauge            prometheus.Gauge
	lastSuccessfulCycleGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthwatch_cycle_duration_seconds",
			Help:    "Duration of monitoring cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		servicesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthwatch_services_total",
			Help: "Total monitored services by status.",
		}, []string{"status"}),
		probesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthwatch_probes_total",
			Help: "Total health probes attempted.",
		}),
		probeFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthwatch_probe_failures_total",
			Help: "Total health probes that failed.",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthwatch_circuit_breaker_state",
			Help: "Circuit breaker state per service (0 closed, 1 half-open, 2 open).",
		}, []string{"service"}),
		recoveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthwatch_recoveries_total",
			Help: "Total recovery executions by outcome.",
		}, []string{"outcome"}),
		incidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthwatch_incidents_total",
			Help: "Total incidents opened by type.",
		}, []string{"type"}),
		insightsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthwatch_insights",
			Help: "Size of the latest insight batch.",
		}),
		lastSuccessfulCycleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthwatch_last_successful_cycle_timestamp",
			Help: "Unix timestamp of the last successful cycle.",
		}),
	}

	registry.MustRegister(
		m.cycleDurationSeconds,
		m.servicesTotal,
		m.probesTotal,
		m.probeFailuresTotal,
		m.breakerState,
		m.recoveriesTotal,
		m.incidentsTotal,
		m.insightsGauge,
		m.lastSuccessfulCycleGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycleDuration records the duration of a completed cycle.
func (m *Metrics) ObserveCycleDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.Observe(duration.Seconds())
}

// SetServicesTotal sets the services gauge for the given status.
func (m *Metrics) SetServicesTotal(status string, value int) {
	if m == nil {
		return
	}
	m.servicesTotal.WithLabelValues(status).Set(float64(value))
}

// IncProbes increments the probe attempt counter.
func (m *Metrics) IncProbes() {
	if m == nil {
		return
	}
	m.probesTotal.Inc()
}

// IncProbeFailures increments the probe failure counter.
func (m *Metrics) IncProbeFailures() {
	if m == nil {
		return
	}
	m.probeFailuresTotal.Inc()
}

// SetBreakerState sets the breaker state gauge for a service.
func (m *Metrics) SetBreakerState(service string, value int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(service).Set(float64(value))
}

// IncRecoveries increments the recovery counter for the given outcome.
func (m *Metrics) IncRecoveries(outcome string) {
	if m == nil {
		return
	}
	m.recoveriesTotal.WithLabelValues(outcome).Inc()
}

// IncIncidents increments the incident counter for the given type.
func (m *Metrics) IncIncidents(kind string) {
	if m == nil {
		return
	}
	m.incidentsTotal.WithLabelValues(kind).Inc()
}

// SetInsightCount records the size of the latest insight batch.
func (m *Metrics) SetInsightCount(value int) {
	if m == nil {
		return
	}
	m.insightsGauge.Set(float64(value))
}

// SetLastSuccessfulCycleTimestamp sets the last successful cycle time.
func (m *Metrics) SetLastSuccessfulCycleTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulCycleGauge.Set(float64(t.Unix()))
}
