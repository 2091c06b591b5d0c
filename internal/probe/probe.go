package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/health"
)

const (
	// DefaultTimeout bounds a single probe when the target does not override it.
	DefaultTimeout = 5 * time.Second

	probeBodyLimit = 64 * 1024
)

// Target identifies one monitored service and its health endpoint.
type Target struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// payload is the contract each monitored service exposes. Missing fields
// default to zero values; response time falls back to the measured elapsed.
type payload struct {
	OK             *bool   `json:"ok"`
	ResponseTimeMS int64   `json:"response_time_ms"`
	ErrorRate      float64 `json:"error_rate"`
	MemoryUsage    float64 `json:"memory_usage"`
	CPUUsage       float64 `json:"cpu_usage"`
}

// Client issues bounded health probes and normalizes every outcome into a
// Metric. It never returns an error past its boundary.
type Client struct {
	logger  zerolog.Logger
	client  *retryablehttp.Client
	timeout time.Duration
	now     func() time.Time
}

// Option customizes probe client behavior.
type Option func(*Client)

// WithNow overrides the clock, primarily for testing.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient constructs a probe client with the given default timeout.
// Retries are disabled: a probe measures the service as it is right now.
func NewClient(logger zerolog.Logger, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 0
	httpClient.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	httpClient.Logger = nil
	httpClient.HTTPClient = &http.Client{Timeout: timeout}

	c := &Client{
		logger:  logger,
		client:  httpClient,
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe checks a single target. Timeouts, transport errors, non-2xx responses
// and malformed bodies all normalize to a CRITICAL metric so the monitor can
// proceed uniformly.
func (c *Client) Probe(ctx context.Context, target Target) health.Metric {
	timeout := c.timeout
	if target.Timeout > 0 {
		timeout = target.Timeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := c.now()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodGet, target.URL, nil)
	if err != nil {
		c.logger.Error().Err(err).Str("service", target.Name).Msg("invalid probe request")
		return c.failedMetric(target.Name)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("service", target.Name).Msg("probe failed")
		return c.failedMetric(target.Name)
	}
	defer resp.Body.Close()

	elapsed := c.now().Sub(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Str("service", target.Name).
			Int("status_code", resp.StatusCode).
			Msg("probe returned non-2xx")
		return c.failedMetric(target.Name)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		c.logger.Warn().Err(err).Str("service", target.Name).Msg("probe body read failed")
		return c.failedMetric(target.Name)
	}

	var report payload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &report); err != nil {
			c.logger.Warn().Err(err).Str("service", target.Name).Msg("probe body not valid json")
			return c.failedMetric(target.Name)
		}
	}

	if report.OK != nil && !*report.OK {
		metric := c.failedMetric(target.Name)
		metric.ErrorRate = report.ErrorRate
		if metric.ErrorRate == 0 {
			metric.ErrorRate = 1.0
		}
		return metric
	}

	responseTime := report.ResponseTimeMS
	if responseTime == 0 {
		responseTime = elapsed.Milliseconds()
	}

	metric := health.Metric{
		Service:        target.Name,
		ResponseTimeMS: responseTime,
		ErrorRate:      report.ErrorRate,
		MemoryUsage:    report.MemoryUsage,
		CPUUsage:       report.CPUUsage,
		Timestamp:      c.now().UTC(),
	}
	metric.Status, _ = health.Classify(metric)
	return metric
}

func (c *Client) failedMetric(service string) health.Metric {
	return health.Metric{
		Service:   service,
		Status:    health.StatusCritical,
		ErrorRate: 1.0,
		Timestamp: c.now().UTC(),
	}
}
