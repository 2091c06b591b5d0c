package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/event"
	"github.com/nholik/healthwatch/internal/insight"
	"github.com/nholik/healthwatch/internal/monitor"
	"github.com/nholik/healthwatch/internal/recovery"
)

// Engine owns the long-running loops: the health monitor and the insight
// generator. It runs them in parallel and drains in-flight recoveries on
// shutdown before closing the event bus.
type Engine struct {
	logger    zerolog.Logger
	monitor   *monitor.Monitor
	generator *insight.Generator
	executor  *recovery.Executor
	bus       *event.Bus
}

// New constructs an Engine over its loops.
func New(logger zerolog.Logger, m *monitor.Monitor, generator *insight.Generator, executor *recovery.Executor, bus *event.Bus) *Engine {
	return &Engine{
		logger:    logger,
		monitor:   m,
		generator: generator,
		executor:  executor,
		bus:       bus,
	}
}

// Run starts both loops and blocks until the context is canceled. Recoveries
// started before cancellation run to completion.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Msg("engine starting")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.monitor.Run(ctx); err != nil {
			e.logger.Error().Err(err).Msg("monitor exited with error")
		}
	}()

	if e.generator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.generator.Run(ctx); err != nil {
				e.logger.Error().Err(err).Msg("insight generator exited with error")
			}
		}()
	}

	wg.Wait()

	if e.executor != nil {
		e.logger.Info().Msg("waiting for in-flight recoveries")
		e.executor.Wait()
	}
	if e.bus != nil {
		e.bus.Close()
	}

	e.logger.Info().Msg("engine stopped")
	return nil
}
