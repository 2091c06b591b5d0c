package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/incident"
)

// ErrRecoveryInFlight rejects a recovery request for a service that already
// has one active.
var ErrRecoveryInFlight = errors.New("recovery already in progress for service")

// Hook executes one recovery action against the outside world. How an action
// is physically applied is the hook's concern, not the engine's.
type Hook interface {
	Apply(ctx context.Context, service string, action Action) error
}

// Executor runs recovery plans. It enforces at most one active execution per
// service and records every attempt in the incident ledger.
type Executor struct {
	logger    zerolog.Logger
	hook      Hook
	incidents *incident.Ledger

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

// NewExecutor constructs an executor backed by the given hook and ledger.
func NewExecutor(logger zerolog.Logger, hook Hook, incidents *incident.Ledger) *Executor {
	return &Executor{
		logger:    logger,
		hook:      hook,
		incidents: incidents,
		active:    make(map[string]struct{}),
	}
}

// Active reports whether a recovery is currently executing for the service.
func (e *Executor) Active(service string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[service]
	return ok
}

// Recover plans and executes recovery for a degraded service. The incident is
// created synchronously; automated actions run on a background goroutine so a
// long recovery cannot stall the monitor loop. An empty plan yields a
// manual-intervention incident instead of an execution.
func (e *Executor) Recover(ctx context.Context, h health.ServiceHealth, kind incident.Kind) (incident.Incident, error) {
	release, err := e.acquire(h.Name)
	if err != nil {
		return incident.Incident{}, err
	}

	plan := BuildPlan(h)
	if plan.Empty() {
		release()
		inc := e.incidents.Open(incident.KindManualIntervention, h.Name,
			fmt.Sprintf("no automated recovery available for %s; operator action required", h.Name))
		return inc, nil
	}

	inc := e.incidents.Open(kind, h.Name,
		fmt.Sprintf("%s recovery for %s (%d actions, priority %s)", kind, h.Name, len(plan.Actions), plan.Priority))

	e.logger.Info().
		Str("incident", inc.ID).
		Str("service", h.Name).
		Int("actions", len(plan.Actions)).
		Str("priority", string(plan.Priority)).
		Dur("estimated_duration", plan.EstimatedDuration).
		Msg("recovery started")

	// Engine shutdown must not abort a partially applied recovery, so the
	// execution context survives cancellation of the caller's.
	execCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer release()
		e.execute(execCtx, plan, inc.ID)
	}()

	return inc, nil
}

// Wait blocks until all in-flight executions have finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) execute(ctx context.Context, plan Plan, incidentID string) {
	for _, action := range plan.Actions {
		if !action.Automated {
			continue
		}

		if err := e.hook.Apply(ctx, plan.Service, action); err != nil {
			e.logger.Error().
				Err(err).
				Str("incident", incidentID).
				Str("service", plan.Service).
				Str("action", string(action.Type)).
				Msg("recovery action failed")

			reason := fmt.Sprintf("%s: failed: %v", action.Type, err)
			if err := e.incidents.Fail(incidentID, reason); err != nil {
				e.logger.Error().Err(err).Str("incident", incidentID).Msg("failed to mark incident failed")
			}
			return
		}

		entry := fmt.Sprintf("%s: completed", action.Type)
		if err := e.incidents.AppendAction(incidentID, entry); err != nil {
			e.logger.Error().Err(err).Str("incident", incidentID).Msg("failed to append action log")
		}
	}

	if err := e.incidents.Resolve(incidentID); err != nil {
		e.logger.Error().Err(err).Str("incident", incidentID).Msg("failed to resolve incident")
		return
	}

	e.logger.Info().
		Str("incident", incidentID).
		Str("service", plan.Service).
		Msg("recovery completed")
}

func (e *Executor) acquire(service string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[service]; ok {
		return nil, ErrRecoveryInFlight
	}
	e.active[service] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.active, service)
			e.mu.Unlock()
		})
	}, nil
}
