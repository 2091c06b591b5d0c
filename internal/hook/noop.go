package hook

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/recovery"
)

// Noop logs actions without applying them. Used when no automation hook is
// configured and in dry-run mode.
type Noop struct {
	logger zerolog.Logger
}

// NewNoop returns a hook that logs once on construction and per action.
func NewNoop(logger zerolog.Logger, reason string) *Noop {
	if reason != "" {
		logger.Info().Msg(reason)
	}
	return &Noop{logger: logger}
}

// Apply implements recovery.Hook.
func (h *Noop) Apply(_ context.Context, service string, action recovery.Action) error {
	h.logger.Info().
		Str("service", service).
		Str("action", string(action.Type)).
		Str("description", action.Description).
		Msg("recovery action logged only, no automation hook")
	return nil
}
