package notify

import (
	"context"

	"github.com/nholik/healthwatch/internal/transition"
)

// Notifier delivers health transition alerts to external systems.
type Notifier interface {
	Notify(ctx context.Context, transitions []transition.ServiceTransition) error
}
