package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/api"
	"github.com/nholik/healthwatch/internal/healthcheck"
	"github.com/nholik/healthwatch/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Start launches the API, health and metrics HTTP servers as configured.
// Surfaces sharing a port share one server; a port of zero disables that
// surface.
func Start(ctx context.Context, logger zerolog.Logger, pollInterval time.Duration, handlers *api.Handlers, tracker *healthcheck.Tracker, metricsCollector *metrics.Metrics, apiPort, healthPort, metricsPort int) {
	muxes := make(map[int]*http.ServeMux)
	labels := make(map[int]string)

	muxFor := func(port int, label string) *http.ServeMux {
		mux, ok := muxes[port]
		if !ok {
			mux = http.NewServeMux()
			muxes[port] = mux
			labels[port] = label
		} else {
			labels[port] += "/" + label
		}
		return mux
	}

	if apiPort > 0 && handlers != nil {
		handlers.Register(muxFor(apiPort, "api"))
	}
	if healthPort > 0 {
		registerHealthRoutes(muxFor(healthPort, "health"), tracker, pollInterval)
	}
	if metricsPort > 0 && metricsCollector != nil {
		muxFor(metricsPort, "metrics").Handle("/metrics", metricsCollector.Handler())
	}

	for port, mux := range muxes {
		startServer(ctx, logger, mux, port, labels[port])
	}
}

func registerHealthRoutes(mux *http.ServeMux, tracker *healthcheck.Tracker, pollInterval time.Duration) {
	mux.HandleFunc("/healthz", healthcheck.HealthHandler(tracker, pollInterval))
	mux.HandleFunc("/readyz", healthcheck.ReadyHandler(tracker))
}

func startServer(ctx context.Context, logger zerolog.Logger, handler http.Handler, port int, label string) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", label).Int("port", port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server shutdown failed")
		}
	}()
}
