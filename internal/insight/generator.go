package insight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/event"
	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/incident"
)

const (
	// DefaultInterval is the insight cadence. Deliberately much slower than
	// the monitor poll and driven by its own timer.
	DefaultInterval = 5 * time.Minute

	defaultWindowSize   = 12
	recentIncidentCount = 20
)

// Ticker is the minimal interface needed for driving the generator loop.
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

// HealthSource supplies the current per-service health view.
type HealthSource interface {
	ServiceView() map[string]health.ServiceHealth
}

// IncidentSource supplies recent incident history.
type IncidentSource interface {
	Recent(n int) []incident.Incident
}

// Generator periodically analyzes recent health history and emits a batch of
// predictive insights. A failed generation produces an empty batch and a log
// line, never an error to the caller.
type Generator struct {
	logger        zerolog.Logger
	interval      time.Duration
	healthSource  HealthSource
	incidents     IncidentSource
	bus           *event.Bus
	rules         []rule
	tickerFactory func(time.Duration) Ticker

	mu     sync.RWMutex
	window []map[string]health.ServiceHealth
	latest []Insight
}

// Option customizes generator behavior.
type Option func(*Generator)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(g *Generator) {
		g.tickerFactory = factory
	}
}

// NewGenerator constructs an insight generator.
func NewGenerator(logger zerolog.Logger, interval time.Duration, healthSource HealthSource, incidents IncidentSource, bus *event.Bus, opts ...Option) *Generator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	g := &Generator{
		logger:       logger,
		interval:     interval,
		healthSource: healthSource,
		incidents:    incidents,
		bus:          bus,
		rules:        defaultRules,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run drives the generation loop until the context is canceled.
func (g *Generator) Run(ctx context.Context) error {
	if g.interval <= 0 {
		return errors.New("insight interval must be greater than zero")
	}

	ticker := g.tickerFactory(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info().Msg("insight generator stopped")
			return nil
		case <-ticker.C():
			g.Generate()
		}
	}
}

// Generate runs one analysis cycle and returns the new batch. The batch
// replaces the previous one.
func (g *Generator) Generate() []Insight {
	batch := g.analyze()

	g.mu.Lock()
	g.latest = batch
	g.mu.Unlock()

	g.logger.Debug().Int("insights", len(batch)).Msg("insight batch generated")
	if g.bus != nil {
		g.bus.Publish(event.TypeInsightsGenerated, append([]Insight(nil), batch...))
	}
	return batch
}

// Latest returns a copy of the most recent batch.
func (g *Generator) Latest() []Insight {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Insight(nil), g.latest...)
}

func (g *Generator) analyze() (batch []Insight) {
	// A broken rule must not take the engine down; it costs one empty batch.
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Interface("panic", r).Msg("insight generation failed")
			batch = []Insight{}
		}
	}()

	view := g.healthSource.ServiceView()
	if view == nil {
		return []Insight{}
	}

	g.mu.Lock()
	g.window = append(g.window, view)
	if len(g.window) > defaultWindowSize {
		g.window = g.window[len(g.window)-defaultWindowSize:]
	}
	window := make([]map[string]health.ServiceHealth, len(g.window))
	copy(window, g.window)
	g.mu.Unlock()

	var recent []incident.Incident
	if g.incidents != nil {
		recent = g.incidents.Recent(recentIncidentCount)
	}

	batch = []Insight{}
	for _, r := range g.rules {
		batch = append(batch, r(window, recent)...)
	}
	return batch
}
