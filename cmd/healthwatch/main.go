package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/api"
	"github.com/nholik/healthwatch/internal/breaker"
	"github.com/nholik/healthwatch/internal/config"
	"github.com/nholik/healthwatch/internal/engine"
	"github.com/nholik/healthwatch/internal/event"
	"github.com/nholik/healthwatch/internal/healthcheck"
	"github.com/nholik/healthwatch/internal/hook"
	"github.com/nholik/healthwatch/internal/incident"
	"github.com/nholik/healthwatch/internal/insight"
	"github.com/nholik/healthwatch/internal/logging"
	"github.com/nholik/healthwatch/internal/metrics"
	"github.com/nholik/healthwatch/internal/monitor"
	"github.com/nholik/healthwatch/internal/notify"
	"github.com/nholik/healthwatch/internal/probe"
	"github.com/nholik/healthwatch/internal/recovery"
	"github.com/nholik/healthwatch/internal/server"
	"github.com/nholik/healthwatch/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New()
		bootLogger.Fatal().Err(err).Msg("configuration error")
	}

	logger := logging.NewWithLevel(cfg.LogLevel)
	logger.Info().Msg("healthwatch starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targets, err := loadTargets(ctx, logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load monitored services")
	}
	logger.Info().Int("services", len(targets)).Msg("monitored services loaded")

	bus := event.NewBus(logger)
	collectors := metrics.New()
	tracker := healthcheck.NewTracker()

	ledger := incident.NewLedger(logger, bus, cfg.IncidentCap)
	breakers := breaker.NewSet(breaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		BaseDelay:        cfg.BreakerBaseDelay,
		MaxDelay:         cfg.BreakerMaxDelay,
	})

	recoveryHook, err := buildRecoveryHook(logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize recovery hook")
	}
	executor := recovery.NewExecutor(logger, recoveryHook, ledger)

	notifier, err := buildNotifier(logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize notifiers")
	}

	prober := probe.NewClient(logger, cfg.ProbeTimeout)

	options := []monitor.Option{
		monitor.WithNotifier(notifier),
		monitor.WithMetrics(collectors),
		monitor.WithTracker(tracker),
	}
	if cfg.FreshnessWindow > 0 {
		options = append(options, monitor.WithFreshness(cfg.FreshnessWindow))
	}

	var store state.Store
	if cfg.StateFile != "" {
		store = state.NewFileStore(cfg.StateFile, logger)
		options = append(options, monitor.WithStateStore(store))
	}

	mon := monitor.New(logger, cfg.PollInterval, targets, prober, breakers, executor, bus, options...)

	if store != nil {
		snapshot, err := store.Load(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load persisted state")
		}
		mon.Restore(snapshot)
	}

	generator := insight.NewGenerator(logger, cfg.InsightInterval, mon, ledger, bus)

	handlers := api.NewHandlers(logger, mon, ledger, generator, breakers)
	server.Start(ctx, logger, cfg.PollInterval, handlers, tracker, collectors, cfg.APIPort, cfg.HealthPort, cfg.MetricsPort)

	if err := engine.New(logger, mon, generator, executor, bus).Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("engine failed")
	}

	logger.Info().Msg("healthwatch stopped")
}

// loadTargets merges the YAML targets file with compose-labeled services.
// Explicit targets win on name collisions.
func loadTargets(ctx context.Context, logger zerolog.Logger, cfg config.Config) ([]probe.Target, error) {
	targets, err := config.LoadTargetsFile(cfg.TargetsFile)
	if err != nil {
		return nil, err
	}

	composeTargets, err := config.LoadComposeTargets(ctx, cfg.ComposeFile)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		seen[target.Name] = true
	}
	for _, target := range composeTargets {
		if seen[target.Name] {
			logger.Warn().Str("service", target.Name).Msg("compose service shadowed by targets file entry")
			continue
		}
		targets = append(targets, target)
	}

	return targets, nil
}

// buildRecoveryHook assembles the action execution chain: docker restarts
// where a docker host is configured, webhook delivery for the rest, and a
// logging no-op as the fallback.
func buildRecoveryHook(logger zerolog.Logger, cfg config.Config) (recovery.Hook, error) {
	if cfg.DryRun {
		return hook.NewNoop(logger, "dry run"), nil
	}

	var chain recovery.Hook = hook.NewNoop(logger, "no recovery backend configured")
	if cfg.RecoveryWebhookURL != "" {
		chain = hook.NewWebhook(logger, cfg.RecoveryWebhookURL)
	}

	if cfg.DockerHost != "" {
		docker, err := hook.NewDocker(logger, cfg.DockerHost, chain)
		if err != nil {
			return nil, err
		}
		chain = docker
	}

	return chain, nil
}

func buildNotifier(logger zerolog.Logger, cfg config.Config) (notify.Notifier, error) {
	var notifiers []notify.Notifier

	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(logger, cfg.SlackWebhookURL))
	}

	if cfg.NotifyWebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(logger, cfg.NotifyWebhookURL, "")
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, webhook)
	}

	var notifier notify.Notifier
	switch len(notifiers) {
	case 0:
		notifier = notify.NewNoop(logger, "no notifiers configured")
	case 1:
		notifier = notifiers[0]
	default:
		notifier = notify.NewMultiNotifier(notifiers...)
	}

	if cfg.DryRun {
		notifier = notify.NewDryRunNotifier(logger, notifier)
	}
	return notifier, nil
}
