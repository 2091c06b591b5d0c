package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/recovery"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	webhookBodyLimit      = 1024
)

// webhookPayload is the request body posted to the automation endpoint for
// each action.
type webhookPayload struct {
	Service     string    `json:"service"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	RequestedAt time.Time `json:"requested_at"`
}

// Webhook delivers recovery actions to an external automation endpoint.
// The endpoint is expected to apply the action and answer 2xx.
type Webhook struct {
	logger  zerolog.Logger
	url     string
	client  *retryablehttp.Client
	timeout time.Duration

	backoffInitial    time.Duration
	backoffMax        time.Duration
	backoffMaxElapsed time.Duration
}

// WebhookOption customizes webhook hook behavior.
type WebhookOption func(*Webhook)

// WithWebhookTiming overrides timeout and backoff parameters (primarily for
// testing).
func WithWebhookTiming(timeout, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) WebhookOption {
	return func(w *Webhook) {
		w.timeout = timeout
		w.backoffInitial = backoffInitial
		w.backoffMax = backoffMax
		w.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewWebhook constructs a webhook recovery hook.
func NewWebhook(logger zerolog.Logger, url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		logger:            logger,
		url:               url,
		timeout:           defaultWebhookTimeout,
		backoffInitial:    1 * time.Second,
		backoffMax:        10 * time.Second,
		backoffMaxElapsed: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: w.timeout}
	w.client = client

	return w
}

// Apply implements recovery.Hook. Transport and 5xx failures are retried
// with exponential backoff; other HTTP failures are terminal.
func (w *Webhook) Apply(ctx context.Context, service string, action recovery.Action) error {
	payload, err := json.Marshal(webhookPayload{
		Service:     service,
		Action:      string(action.Type),
		Description: action.Description,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal action payload: %w", err)
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = w.backoffInitial
	backoffCfg.MaxInterval = w.backoffMax
	backoffCfg.MaxElapsedTime = w.backoffMaxElapsed

	operation := func() error {
		return w.postOnce(ctx, payload)
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoffCfg, ctx)); err != nil {
		return fmt.Errorf("apply %s for %s: %w", action.Type, service, err)
	}

	w.logger.Debug().
		Str("service", service).
		Str("action", string(action.Type)).
		Msg("recovery action delivered to automation hook")
	return nil
}

func (w *Webhook) postOnce(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build hook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("hook request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, webhookBodyLimit))
	bodyText := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("hook server error: %s", resp.Status)
	default:
		if bodyText != "" {
			return backoff.Permanent(fmt.Errorf("hook rejected action: %s (%s)", resp.Status, bodyText))
		}
		return backoff.Permanent(fmt.Errorf("hook rejected action: %s", resp.Status))
	}
}
