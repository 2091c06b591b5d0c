package state

import (
	"context"
	"time"

	"github.com/nholik/healthwatch/internal/breaker"
	"github.com/nholik/healthwatch/internal/health"
)

// Snapshot is the engine state that survives a restart: the last health view
// (freshness baseline) and breaker statuses (so open breakers stay open).
// Incident history is deliberately not persisted here.
type Snapshot struct {
	Overall  health.Status                   `json:"overall"`
	Services map[string]health.ServiceHealth `json:"services"`
	Breakers map[string]breaker.Status       `json:"breakers"`
	SavedAt  time.Time                       `json:"saved_at"`
}

// Store defines the interface for persisting engine state.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}
