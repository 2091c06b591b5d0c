package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/breaker"
	"github.com/nholik/healthwatch/internal/event"
	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/healthcheck"
	"github.com/nholik/healthwatch/internal/incident"
	"github.com/nholik/healthwatch/internal/metrics"
	"github.com/nholik/healthwatch/internal/notify"
	"github.com/nholik/healthwatch/internal/probe"
	"github.com/nholik/healthwatch/internal/recovery"
	"github.com/nholik/healthwatch/internal/state"
	"github.com/nholik/healthwatch/internal/transition"
)

// DefaultInterval is the monitor poll cadence.
const DefaultInterval = 30 * time.Second

// ErrUnknownService rejects requests naming a service that is not monitored.
var ErrUnknownService = errors.New("unknown service")

// Ticker is the minimal interface needed for driving the monitor loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Prober issues a single health probe against a target.
type Prober interface {
	Probe(ctx context.Context, target probe.Target) health.Metric
}

// Recoverer plans and executes recovery for an unhealthy service.
type Recoverer interface {
	Recover(ctx context.Context, h health.ServiceHealth, kind incident.Kind) (incident.Incident, error)
	Active(service string) bool
}

// View is the monitor's published picture of the system: the per-service
// health map plus the aggregated overall status.
type View struct {
	Overall   health.Status                   `json:"overall"`
	Services  map[string]health.ServiceHealth `json:"services"`
	CheckedAt time.Time                       `json:"checked_at"`
}

type uptimeCounter struct {
	total   int64
	healthy int64
}

// Monitor owns the poll loop: it fans probes out across registered services,
// feeds outcomes into the circuit breakers, aggregates overall health,
// triggers recovery for unhealthy services and publishes the updated view.
type Monitor struct {
	logger        zerolog.Logger
	interval      time.Duration
	freshness     time.Duration
	targets       []probe.Target
	targetIndex   map[string]probe.Target
	prober        Prober
	breakers      *breaker.Set
	executor      Recoverer
	bus           *event.Bus
	notifier      notify.Notifier
	metrics       *metrics.Metrics
	tracker       *healthcheck.Tracker
	store         state.Store
	tickerFactory func(time.Duration) Ticker
	now           func() time.Time

	// cycleMu enforces at most one in-flight cycle; ticks arriving while a
	// cycle runs are skipped, not queued.
	cycleMu sync.Mutex

	mu       sync.RWMutex
	services map[string]health.ServiceHealth
	overall  health.Status
	uptime   map[string]*uptimeCounter
}

// Option customizes monitor behavior.
type Option func(*Monitor)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(m *Monitor) {
		m.tickerFactory = factory
	}
}

// WithNow overrides the clock, primarily for testing.
func WithNow(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithNotifier enables status transition notifications.
func WithNotifier(notifier notify.Notifier) Option {
	return func(m *Monitor) {
		m.notifier = notifier
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(collectors *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = collectors
	}
}

// WithTracker enables liveness tracking for /healthz and /readyz.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(m *Monitor) {
		m.tracker = tracker
	}
}

// WithStateStore enables state persistence after each cycle.
func WithStateStore(store state.Store) Option {
	return func(m *Monitor) {
		m.store = store
	}
}

// WithFreshness overrides how long a service view stays valid without a
// fresh probe before it degrades to UNKNOWN.
func WithFreshness(freshness time.Duration) Option {
	return func(m *Monitor) {
		if freshness > 0 {
			m.freshness = freshness
		}
	}
}

// New constructs a monitor over the given targets.
func New(logger zerolog.Logger, interval time.Duration, targets []probe.Target, prober Prober, breakers *breaker.Set, executor Recoverer, bus *event.Bus, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}

	index := make(map[string]probe.Target, len(targets))
	for _, target := range targets {
		index[target.Name] = target
	}

	m := &Monitor{
		logger:      logger,
		interval:    interval,
		freshness:   3 * interval,
		targets:     targets,
		targetIndex: index,
		prober:      prober,
		breakers:    breakers,
		executor:    executor,
		bus:         bus,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
		now:      time.Now,
		services: make(map[string]health.ServiceHealth),
		overall:  health.StatusUnknown,
		uptime:   make(map[string]*uptimeCounter),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore seeds the monitor's view and breaker statuses from a persisted
// snapshot, typically before the first cycle.
func (m *Monitor) Restore(snapshot state.Snapshot) {
	m.mu.Lock()
	for name, service := range snapshot.Services {
		m.services[name] = service
	}
	if snapshot.Overall != "" {
		m.overall = snapshot.Overall
	}
	m.mu.Unlock()

	m.breakers.Restore(snapshot.Breakers)
	m.logger.Info().
		Int("services", len(snapshot.Services)).
		Int("breakers", len(snapshot.Breakers)).
		Time("saved_at", snapshot.SavedAt).
		Msg("state restored")
}

// Run starts the poll loop and blocks until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	if m.interval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	// Run immediately on startup
	m.RunOnce(ctx)

	ticker := m.tickerFactory(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor stopped")
			return nil
		case <-ticker.C():
			m.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single monitoring cycle. A tick that lands while a
// previous cycle is still running is dropped.
func (m *Monitor) RunOnce(ctx context.Context) {
	if !m.cycleMu.TryLock() {
		m.logger.Warn().Msg("previous cycle still running, skipping tick")
		return
	}
	defer m.cycleMu.Unlock()

	m.cycle(ctx)
}

func (m *Monitor) cycle(ctx context.Context) {
	start := m.now()

	results := m.collect(ctx)

	m.mu.Lock()
	previous := make(map[string]health.ServiceHealth, len(m.services))
	for name, service := range m.services {
		previous[name] = service
	}

	for name, metric := range results {
		m.services[name] = m.evaluate(name, metric)
	}
	m.expireStale(start.UTC())

	current := make(map[string]health.ServiceHealth, len(m.services))
	for name, service := range m.services {
		current[name] = service
	}
	overall := health.Aggregate(current)
	m.overall = overall
	m.mu.Unlock()

	m.logger.Info().
		Str("overall", string(overall)).
		Int("services", len(current)).
		Int("probed", len(results)).
		Msg("cycle complete")

	transitions := transition.Detect(previous, current)
	m.notifyTransitions(ctx, transitions)

	m.triggerRecovery(ctx, current, overall)

	if m.bus != nil {
		m.bus.Publish(event.TypeHealthUpdated, View{
			Overall:   overall,
			Services:  current,
			CheckedAt: start.UTC(),
		})
	}

	m.record(ctx, start, overall, current)
}

// collect fans probes out across all breaker-permitted targets and gathers
// the resulting metrics. Services with an open breaker are skipped.
func (m *Monitor) collect(ctx context.Context) map[string]health.Metric {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]health.Metric, len(m.targets))
	)

	for _, target := range m.targets {
		if !m.breakers.Allow(target.Name) {
			m.logger.Debug().Str("service", target.Name).Msg("breaker open, probe skipped")
			continue
		}

		wg.Add(1)
		go func(target probe.Target) {
			defer wg.Done()

			m.metrics.IncProbes()
			metric := m.prober.Probe(ctx, target)

			if metric.Status == health.StatusCritical {
				m.metrics.IncProbeFailures()
				m.breakers.RecordFailure(target.Name)
			} else {
				m.breakers.RecordSuccess(target.Name)
			}

			mu.Lock()
			results[target.Name] = metric
			mu.Unlock()
		}(target)
	}

	wg.Wait()
	return results
}

// evaluate folds one probe metric into the service view. Caller holds m.mu.
func (m *Monitor) evaluate(name string, metric health.Metric) health.ServiceHealth {
	status, reasons := health.Classify(metric)

	counter, ok := m.uptime[name]
	if !ok {
		counter = &uptimeCounter{}
		m.uptime[name] = counter
	}
	counter.total++
	if status == health.StatusHealthy {
		counter.healthy++
	}

	return health.ServiceHealth{
		Name:           name,
		Status:         status,
		LastCheck:      metric.Timestamp,
		ResponseTimeMS: metric.ResponseTimeMS,
		ErrorRate:      metric.ErrorRate,
		UptimeRatio:    float64(counter.healthy) / float64(counter.total),
		Reasons:        reasons,
	}
}

// expireStale downgrades services without a fresh probe to UNKNOWN once
// their last check ages past the freshness window. Caller holds m.mu.
func (m *Monitor) expireStale(now time.Time) {
	for name, service := range m.services {
		if service.Status == health.StatusUnknown {
			continue
		}
		if service.LastCheck.IsZero() || now.Sub(service.LastCheck) > m.freshness {
			service.Status = health.StatusUnknown
			service.Reasons = []string{"no recent probe"}
			m.services[name] = service
		}
	}
}

func (m *Monitor) notifyTransitions(ctx context.Context, transitions []transition.ServiceTransition) {
	if len(transitions) == 0 {
		return
	}

	for _, change := range transitions {
		evt := m.logger.Info()
		switch change.CurrentStatus {
		case health.StatusCritical:
			evt = m.logger.Error()
		case health.StatusDegraded, health.StatusUnknown:
			evt = m.logger.Warn()
		}
		evt.
			Str("service", change.Name).
			Str("previous_status", string(change.PreviousStatus)).
			Str("current_status", string(change.CurrentStatus)).
			Strs("reasons", change.Reasons).
			Msg("service transition detected")
	}

	if m.notifier == nil {
		return
	}

	// Notification delivery retries must not stall the poll loop.
	go func() {
		if err := m.notifier.Notify(ctx, transitions); err != nil {
			m.logger.Error().Err(err).Msg("transition notification failed")
		}
	}()
}

func (m *Monitor) triggerRecovery(ctx context.Context, services map[string]health.ServiceHealth, overall health.Status) {
	if m.executor == nil {
		return
	}
	if overall != health.StatusDegraded && overall != health.StatusCritical {
		return
	}

	for _, service := range services {
		if service.Status != health.StatusDegraded && service.Status != health.StatusCritical {
			continue
		}
		if !m.breakerPermits(service.Name) {
			m.logger.Debug().Str("service", service.Name).Msg("breaker open, recovery skipped")
			continue
		}
		if m.executor.Active(service.Name) {
			continue
		}

		inc, err := m.executor.Recover(ctx, service, incident.KindAutoRecovery)
		if err != nil {
			if errors.Is(err, recovery.ErrRecoveryInFlight) {
				continue
			}
			m.logger.Error().Err(err).Str("service", service.Name).Msg("recovery trigger failed")
			continue
		}
		m.metrics.IncIncidents(string(inc.Kind))
	}
}

func (m *Monitor) record(ctx context.Context, start time.Time, overall health.Status, services map[string]health.ServiceHealth) {
	elapsed := m.now().Sub(start)

	counts := map[health.Status]int{}
	for _, service := range services {
		counts[service.Status]++
	}
	for _, status := range []health.Status{health.StatusHealthy, health.StatusDegraded, health.StatusCritical, health.StatusUnknown} {
		m.metrics.SetServicesTotal(string(status), counts[status])
	}
	for name, status := range m.breakers.Snapshot() {
		m.metrics.SetBreakerState(name, breakerStateValue(status.State))
	}
	m.metrics.ObserveCycleDuration(elapsed)
	m.metrics.SetLastSuccessfulCycleTimestamp(m.now())
	m.tracker.RecordCycle(elapsed, len(services))

	if m.store == nil {
		return
	}
	snapshot := state.Snapshot{
		Overall:  overall,
		Services: services,
		Breakers: m.breakers.Snapshot(),
		SavedAt:  m.now().UTC(),
	}
	if err := m.store.Save(ctx, snapshot); err != nil {
		m.logger.Error().Err(err).Msg("state persistence failed")
	}
}

// breakerPermits is a read-only check that an OPEN breaker has passed its
// retry time. Unlike Allow it never consumes a half-open trial slot, so it
// is safe to consult outside the probe path.
func (m *Monitor) breakerPermits(service string) bool {
	status := m.breakers.Get(service)
	return status.State != breaker.StateOpen || !m.now().Before(status.NextRetry)
}

func breakerStateValue(s breaker.State) int {
	switch s {
	case breaker.StateOpen:
		return 2
	case breaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// Snapshot returns the current aggregated view.
func (m *Monitor) Snapshot() View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	services := make(map[string]health.ServiceHealth, len(m.services))
	for name, service := range m.services {
		services[name] = service
	}
	return View{
		Overall:   m.overall,
		Services:  services,
		CheckedAt: m.now().UTC(),
	}
}

// ServiceView returns a copy of the per-service health map.
func (m *Monitor) ServiceView() map[string]health.ServiceHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	services := make(map[string]health.ServiceHealth, len(m.services))
	for name, service := range m.services {
		services[name] = service
	}
	return services
}

// Registered reports whether the named service is monitored.
func (m *Monitor) Registered(service string) bool {
	_, ok := m.targetIndex[service]
	return ok
}

// ProbeNow checks a single service immediately, outside the poll cadence,
// and folds the result into the current view. On-demand probes are operator
// queries: they never feed the circuit breaker, so an open breaker's retry
// schedule is unaffected by them.
func (m *Monitor) ProbeNow(ctx context.Context, service string) (health.ServiceHealth, error) {
	target, ok := m.targetIndex[service]
	if !ok {
		return health.ServiceHealth{}, ErrUnknownService
	}

	metric := m.prober.Probe(ctx, target)

	m.mu.Lock()
	updated := m.evaluate(service, metric)
	m.services[service] = updated
	m.overall = health.Aggregate(m.services)
	m.mu.Unlock()

	return updated, nil
}

// TriggerManual starts recovery for the named service on operator request.
func (m *Monitor) TriggerManual(ctx context.Context, service string) (incident.Incident, error) {
	if _, ok := m.targetIndex[service]; !ok {
		return incident.Incident{}, ErrUnknownService
	}

	m.mu.RLock()
	current, ok := m.services[service]
	m.mu.RUnlock()
	if !ok {
		current = health.ServiceHealth{Name: service, Status: health.StatusUnknown}
	}

	inc, err := m.executor.Recover(ctx, current, incident.KindManualIntervention)
	if err != nil {
		return incident.Incident{}, err
	}
	m.metrics.IncIncidents(string(inc.Kind))
	return inc, nil
}
