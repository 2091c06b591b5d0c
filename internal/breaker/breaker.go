package breaker

import (
	"sync"
	"time"
)

// State is the circuit breaker state for one service.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Status is a point-in-time copy of one service's breaker. Instances handed
// out of the Set are always copies, never shared references.
type Status struct {
	State       State     `json:"state"`
	Failures    int       `json:"failures"`
	Successes   int       `json:"successes"`
	LastFailure time.Time `json:"last_failure,omitzero"`
	NextRetry   time.Time `json:"next_retry,omitzero"`
}

// Config holds breaker tuning. Zero fields fall back to defaults.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
}

const (
	DefaultFailureThreshold = 3
	DefaultSuccessThreshold = 2
	DefaultBaseDelay        = 30 * time.Second
	DefaultMaxDelay         = 10 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	return c
}

type entry struct {
	status        Status
	trialInFlight bool
}

// Set owns one breaker per service. All mutation goes through its methods.
type Set struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// Option customizes a Set.
type Option func(*Set)

// WithNow overrides the clock, primarily for testing.
func WithNow(now func() time.Time) Option {
	return func(s *Set) {
		s.now = now
	}
}

// NewSet constructs a breaker set.
func NewSet(cfg Config, opts ...Option) *Set {
	s := &Set{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow reports whether a probe or recovery may proceed for the service.
// An OPEN breaker whose retry time has elapsed moves to HALF_OPEN and
// admits exactly one trial at a time.
func (s *Set) Allow(service string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(service)
	switch e.status.State {
	case StateClosed:
		return true
	case StateOpen:
		if s.now().Before(e.status.NextRetry) {
			return false
		}
		e.status.State = StateHalfOpen
		e.trialInFlight = true
		return true
	case StateHalfOpen:
		if e.trialInFlight {
			return false
		}
		e.trialInFlight = true
		return true
	}
	return false
}

// RecordSuccess feeds a successful probe outcome into the breaker.
func (s *Set) RecordSuccess(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(service)
	e.trialInFlight = false

	switch e.status.State {
	case StateClosed:
		e.status.Failures = 0
		e.status.Successes++
	case StateHalfOpen:
		e.status.Successes++
		if e.status.Successes >= s.cfg.SuccessThreshold {
			e.status = Status{State: StateClosed}
		}
	}
}

// RecordFailure feeds a failed probe outcome into the breaker. Crossing the
// failure threshold opens the breaker with capped exponential backoff; a
// failed half-open trial re-opens it with a longer delay.
func (s *Set) RecordFailure(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(service)
	e.trialInFlight = false
	e.status.Failures++
	e.status.Successes = 0
	e.status.LastFailure = s.now().UTC()

	switch e.status.State {
	case StateHalfOpen:
		e.status.State = StateOpen
		e.status.NextRetry = s.now().UTC().Add(s.backoff(e.status.Failures))
	case StateClosed:
		if e.status.Failures >= s.cfg.FailureThreshold {
			e.status.State = StateOpen
			e.status.NextRetry = s.now().UTC().Add(s.backoff(e.status.Failures))
		}
	}
}

// Reset forces the breaker for the service back to CLOSED with zeroed
// counters. Intended for operator override.
func (s *Set) Reset(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(service)
	e.status = Status{State: StateClosed}
	e.trialInFlight = false
}

// Get returns a copy of the breaker status for the service.
func (s *Set) Get(service string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(service).status
}

// Snapshot returns a copy of every breaker status keyed by service.
func (s *Set) Snapshot() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]Status, len(s.entries))
	for name, e := range s.entries {
		result[name] = e.status
	}
	return result
}

// Restore seeds breaker statuses, typically from a persisted snapshot.
// In-flight trial markers are not restored; a restart gets a fresh trial.
func (s *Set) Restore(statuses map[string]Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, status := range statuses {
		if status.State == "" {
			status.State = StateClosed
		}
		s.entries[name] = &entry{status: status}
	}
}

// backoff computes min(maxDelay, baseDelay * 2^(failures - threshold)).
func (s *Set) backoff(failures int) time.Duration {
	exp := failures - s.cfg.FailureThreshold
	if exp < 0 {
		exp = 0
	}
	delay := s.cfg.BaseDelay
	for i := 0; i < exp; i++ {
		delay *= 2
		if delay >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	if delay > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return delay
}

func (s *Set) entry(service string) *entry {
	e, ok := s.entries[service]
	if !ok {
		e = &entry{status: Status{State: StateClosed}}
		s.entries[service] = e
	}
	return e
}
