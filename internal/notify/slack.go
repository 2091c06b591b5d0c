package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/transition"
)

const (
	slackMaxBlocks = 50
	// slackReservedBlocks accounts for header block + context block in each message
	slackReservedBlocks = 2
	slackMaxTransitions = slackMaxBlocks - slackReservedBlocks
)

// SlackNotifier posts health transition alerts to a Slack webhook.
type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     timingConfig
	poster     *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultTiming,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, transitions []transition.ServiceTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	if err := n.poster.waitForRateLimit(ctx); err != nil {
		return err
	}

	messages := buildSlackMessages(transitions)
	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("marshal slack payload: %w", err)
		}
		if err := n.poster.postWithRetry(ctx, payload); err != nil {
			return err
		}
	}

	n.logger.Debug().
		Int("transitions", len(transitions)).
		Int("messages", len(messages)).
		Msg("slack notification sent")

	return nil
}

func buildSlackMessages(transitions []transition.ServiceTransition) []slack.WebhookMessage {
	if len(transitions) == 0 {
		return nil
	}
	if slackMaxTransitions <= 0 {
		return []slack.WebhookMessage{buildSlackMessage(transitions, len(transitions), 1, 1)}
	}

	total := len(transitions)
	chunkTotal := (total + slackMaxTransitions - 1) / slackMaxTransitions
	messages := make([]slack.WebhookMessage, 0, chunkTotal)

	for i := 0; i < total; i += slackMaxTransitions {
		end := i + slackMaxTransitions
		if end > total {
			end = total
		}
		partIndex := (i / slackMaxTransitions) + 1
		messages = append(messages, buildSlackMessage(transitions[i:end], total, partIndex, chunkTotal))
	}
	return messages
}

func buildSlackMessage(transitions []transition.ServiceTransition, total int, partIndex int, partTotal int) slack.WebhookMessage {
	summary := fmt.Sprintf("Health change: %d service transition(s)", total)
	if partTotal > 1 {
		summary = fmt.Sprintf("%s (part %d/%d)", summary, partIndex, partTotal)
	}
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))
	contextElements := []slack.MixedElement{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Services affected: *%d*", total), false, false),
	}
	if partTotal > 1 {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Batch: %d/%d", partIndex, partTotal), false, false))
	}
	context := slack.NewContextBlock("", contextElements...)

	blocks := []slack.Block{header, context}
	for _, change := range transitions {
		blocks = append(blocks, buildTransitionBlock(change))
	}

	blockSet := slack.Blocks{BlockSet: blocks}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func buildTransitionBlock(change transition.ServiceTransition) slack.Block {
	title := fmt.Sprintf("*%s*: `%s` → `%s`", change.Name, statusLabel(change.PreviousStatus), statusLabel(change.CurrentStatus))
	text := slack.NewTextBlockObject("mrkdwn", title, false, false)

	fields := make([]*slack.TextBlockObject, 0, 2)
	if len(change.Reasons) > 0 {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Reasons:*\n"+strings.Join(change.Reasons, ", "), false, false))
	}
	if change.ResponseTimeMS > 0 || change.ErrorRate > 0 {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn",
			fmt.Sprintf("*Metrics:*\nResponse %dms, Error rate %.2f", change.ResponseTimeMS, change.ErrorRate), false, false))
	}

	return slack.NewSectionBlock(text, fields, nil)
}

func statusLabel(status health.Status) string {
	if status == "" {
		return "NONE"
	}
	return string(status)
}
