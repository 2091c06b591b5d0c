package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/breaker"
	"github.com/nholik/healthwatch/internal/event"
	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/incident"
	"github.com/nholik/healthwatch/internal/insight"
	"github.com/nholik/healthwatch/internal/monitor"
	"github.com/nholik/healthwatch/internal/probe"
	"github.com/nholik/healthwatch/internal/recovery"
)

type staticProber struct{}

func (staticProber) Probe(_ context.Context, target probe.Target) health.Metric {
	return health.Metric{
		Service:   target.Name,
		Status:    health.StatusHealthy,
		Timestamp: time.Now().UTC(),
	}
}

type noopHook struct{}

func (noopHook) Apply(context.Context, string, recovery.Action) error { return nil }

func TestEngine_RunsAndStopsCleanly(t *testing.T) {
	logger := zerolog.Nop()
	bus := event.NewBus(logger)
	events, cancelSub := bus.Subscribe(8)
	defer cancelSub()

	ledger := incident.NewLedger(logger, bus, 10)
	executor := recovery.NewExecutor(logger, noopHook{}, ledger)
	breakers := breaker.NewSet(breaker.Config{})

	m := monitor.New(logger, time.Minute, []probe.Target{{Name: "api", URL: "http://api/health"}},
		staticProber{}, breakers, executor, bus)
	generator := insight.NewGenerator(logger, time.Minute, m, ledger, bus)

	e := New(logger, m, generator, executor, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx)
	}()

	// The monitor runs an initial cycle on startup.
	select {
	case evt := <-events:
		if evt.Type != event.TypeHealthUpdated {
			t.Fatalf("expected health:updated, got %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an initial health:updated event")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("engine did not stop after cancel")
	}
}
