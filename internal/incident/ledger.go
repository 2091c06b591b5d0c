package incident

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/event"
)

// DefaultCap bounds the ledger when no cap is configured.
const DefaultCap = 100

// Ledger is a bounded, most-recent-first record of recovery attempts.
// The oldest entry is evicted once the cap is exceeded.
type Ledger struct {
	logger zerolog.Logger
	bus    *event.Bus
	cap    int
	now    func() time.Time

	mu        sync.RWMutex
	incidents []Incident
}

// Option customizes ledger behavior.
type Option func(*Ledger)

// WithNow overrides the clock, primarily for testing.
func WithNow(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger constructs a ledger with the given cap. A nil bus disables
// event emission.
func NewLedger(logger zerolog.Logger, bus *event.Bus, capacity int, opts ...Option) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	l := &Ledger{
		logger: logger,
		bus:    bus,
		cap:    capacity,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open records a new in-progress incident and returns a copy of it.
func (l *Ledger) Open(kind Kind, service, description string) Incident {
	inc := Incident{
		ID:          uuid.New().String(),
		Kind:        kind,
		Service:     service,
		Description: description,
		Status:      StatusInProgress,
		CreatedAt:   l.now().UTC(),
	}

	l.mu.Lock()
	l.incidents = append([]Incident{inc}, l.incidents...)
	if len(l.incidents) > l.cap {
		evicted := l.incidents[len(l.incidents)-1]
		l.incidents = l.incidents[:l.cap]
		l.logger.Debug().
			Str("incident", evicted.ID).
			Str("service", evicted.Service).
			Msg("incident evicted from ledger")
	}
	l.mu.Unlock()

	l.logger.Info().
		Str("incident", inc.ID).
		Str("service", service).
		Str("type", string(kind)).
		Msg("incident opened")

	l.publish(event.TypeIncidentCreated, inc)
	return inc
}

// AppendAction adds an action log entry to an in-progress incident.
func (l *Ledger) AppendAction(id, entry string) error {
	return l.update(id, func(inc *Incident) {
		inc.Actions = append(inc.Actions, entry)
	})
}

// Resolve marks an incident resolved and records its duration.
func (l *Ledger) Resolve(id string) error {
	return l.update(id, func(inc *Incident) {
		inc.Status = StatusResolved
		duration := l.now().UTC().Sub(inc.CreatedAt).Milliseconds()
		inc.DurationMS = &duration
	})
}

// Fail marks an incident failed, appends the failure reason to the action
// log and records the duration. Failures are never silently dropped.
func (l *Ledger) Fail(id, reason string) error {
	return l.update(id, func(inc *Incident) {
		inc.Status = StatusFailed
		inc.Actions = append(inc.Actions, reason)
		duration := l.now().UTC().Sub(inc.CreatedAt).Milliseconds()
		inc.DurationMS = &duration
	})
}

// Get returns a copy of the incident with the given id.
func (l *Ledger) Get(id string) (Incident, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, inc := range l.incidents {
		if inc.ID == id {
			return inc.clone(), true
		}
	}
	return Incident{}, false
}

// List returns one most-recent-first page of incidents plus the total count.
// Pages are 1-based.
func (l *Ledger) List(page, limit int) ([]Incident, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.incidents)
	start := (page - 1) * limit
	if start >= total {
		return []Incident{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	result := make([]Incident, 0, end-start)
	for _, inc := range l.incidents[start:end] {
		result = append(result, inc.clone())
	}
	return result, total
}

// Recent returns copies of up to n most recent incidents.
func (l *Ledger) Recent(n int) []Incident {
	result, _ := l.List(1, n)
	return result
}

// Len reports how many incidents the ledger currently holds.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.incidents)
}

func (l *Ledger) update(id string, mutate func(*Incident)) error {
	l.mu.Lock()
	var updated *Incident
	for i := range l.incidents {
		if l.incidents[i].ID == id {
			mutate(&l.incidents[i])
			copied := l.incidents[i].clone()
			updated = &copied
			break
		}
	}
	l.mu.Unlock()

	if updated == nil {
		return fmt.Errorf("incident %q not found", id)
	}

	l.publish(event.TypeIncidentUpdated, *updated)
	return nil
}

func (l *Ledger) publish(eventType event.Type, inc Incident) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(eventType, inc.clone())
}
