package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envPollInterval     = "HW_POLL_INTERVAL"
	envProbeTimeout     = "HW_PROBE_TIMEOUT"
	envFreshnessWindow  = "HW_FRESHNESS_WINDOW"
	envFailureThreshold = "HW_BREAKER_FAILURE_THRESHOLD"
	envSuccessThreshold = "HW_BREAKER_SUCCESS_THRESHOLD"
	envBreakerBaseDelay = "HW_BREAKER_BASE_DELAY"
	envBreakerMaxDelay  = "HW_BREAKER_MAX_DELAY"
	envIncidentCap      = "HW_INCIDENT_CAP"
	envInsightInterval  = "HW_INSIGHT_INTERVAL"
	envTargetsFile      = "HW_TARGETS_FILE"
	envComposeFile      = "HW_COMPOSE_FILE"
	envSlackWebhookURL  = "HW_SLACK_WEBHOOK_URL"
	envNotifyWebhookURL = "HW_NOTIFY_WEBHOOK_URL"
	envRecoveryWebhook  = "HW_RECOVERY_WEBHOOK_URL"
	envDockerHost       = "HW_DOCKER_HOST"
	envStateFile        = "HW_STATE_FILE"
	envAPIPort          = "HW_API_PORT"
	envHealthPort       = "HW_HEALTH_PORT"
	envMetricsPort      = "HW_METRICS_PORT"
	envLogLevel         = "HW_LOG_LEVEL"
	envDryRun           = "HW_DRY_RUN"
)

const (
	defaultPollInterval    = 30 * time.Second
	defaultProbeTimeout    = 5 * time.Second
	defaultInsightInterval = 5 * time.Minute
	defaultIncidentCap     = 100
	defaultAPIPort         = 8080
	defaultHealthPort      = 8081
	defaultMetricsPort     = 9090
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	PollInterval       time.Duration
	ProbeTimeout       time.Duration
	FreshnessWindow    time.Duration
	FailureThreshold   int
	SuccessThreshold   int
	BreakerBaseDelay   time.Duration
	BreakerMaxDelay    time.Duration
	IncidentCap        int
	InsightInterval    time.Duration
	TargetsFile        string
	ComposeFile        string
	SlackWebhookURL    string
	NotifyWebhookURL   string
	RecoveryWebhookURL string
	DockerHost         string
	StateFile          string
	APIPort            int
	HealthPort         int
	MetricsPort        int
	LogLevel           string
	DryRun             bool
}

// Load reads configuration from environment variables and a local .env file
// if present. Existing environment variables take precedence over .env values.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		PollInterval:    defaultPollInterval,
		ProbeTimeout:    defaultProbeTimeout,
		InsightInterval: defaultInsightInterval,
		IncidentCap:     defaultIncidentCap,
		APIPort:         defaultAPIPort,
		HealthPort:      defaultHealthPort,
		MetricsPort:     defaultMetricsPort,
	}

	var err error
	if cfg.PollInterval, err = durationVar(envPollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.ProbeTimeout, err = durationVar(envProbeTimeout, cfg.ProbeTimeout); err != nil {
		return Config{}, err
	}
	if cfg.InsightInterval, err = durationVar(envInsightInterval, cfg.InsightInterval); err != nil {
		return Config{}, err
	}
	if cfg.BreakerBaseDelay, err = durationVar(envBreakerBaseDelay, 0); err != nil {
		return Config{}, err
	}
	if cfg.BreakerMaxDelay, err = durationVar(envBreakerMaxDelay, 0); err != nil {
		return Config{}, err
	}

	// Zero freshness means the monitor derives it from the poll interval.
	if value, ok := lookupTrimmed(envFreshnessWindow); ok {
		window, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envFreshnessWindow, err)
		}
		if window <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than zero", envFreshnessWindow)
		}
		cfg.FreshnessWindow = window
	}

	if cfg.FailureThreshold, err = intVar(envFailureThreshold, 0); err != nil {
		return Config{}, err
	}
	if cfg.SuccessThreshold, err = intVar(envSuccessThreshold, 0); err != nil {
		return Config{}, err
	}
	if cfg.IncidentCap, err = intVar(envIncidentCap, cfg.IncidentCap); err != nil {
		return Config{}, err
	}
	if cfg.APIPort, err = intVar(envAPIPort, cfg.APIPort); err != nil {
		return Config{}, err
	}
	if cfg.HealthPort, err = intVar(envHealthPort, cfg.HealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = intVar(envMetricsPort, cfg.MetricsPort); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envTargetsFile); ok {
		cfg.TargetsFile = value
	}
	if value, ok := lookupTrimmed(envComposeFile); ok {
		cfg.ComposeFile = value
	}
	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}
	if value, ok := lookupTrimmed(envNotifyWebhookURL); ok {
		cfg.NotifyWebhookURL = value
	}
	if value, ok := lookupTrimmed(envRecoveryWebhook); ok {
		cfg.RecoveryWebhookURL = value
	}
	if value, ok := lookupTrimmed(envDockerHost); ok {
		cfg.DockerHost = value
	}
	if value, ok := lookupTrimmed(envStateFile); ok {
		cfg.StateFile = value
	}
	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}

	if value, ok := lookupTrimmed(envDryRun); ok {
		dryRun, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envDryRun, err)
		}
		cfg.DryRun = dryRun
	}

	if cfg.TargetsFile == "" && cfg.ComposeFile == "" {
		return Config{}, errors.New("one of HW_TARGETS_FILE or HW_COMPOSE_FILE is required")
	}

	for _, webhook := range []struct {
		value string
		name  string
	}{
		{cfg.SlackWebhookURL, envSlackWebhookURL},
		{cfg.NotifyWebhookURL, envNotifyWebhookURL},
		{cfg.RecoveryWebhookURL, envRecoveryWebhook},
	} {
		if webhook.value == "" {
			continue
		}
		if err := validateHTTPURL(webhook.value, webhook.name); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func durationVar(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", key)
	}
	return parsed, nil
}

func intVar(key string, fallback int) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}
	return parsed, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateHTTPURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include host", name)
	}
	return nil
}
