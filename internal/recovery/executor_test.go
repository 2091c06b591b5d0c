package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholik/healthwatch/internal/health"
	"github.com/nholik/healthwatch/internal/incident"
)

type recordingHook struct {
	mu      sync.Mutex
	applied []ActionType
	fail    map[ActionType]error
	block   chan struct{}
}

func (h *recordingHook) Apply(_ context.Context, _ string, action Action) error {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	h.applied = append(h.applied, action.Type)
	h.mu.Unlock()
	if h.fail != nil {
		if err, ok := h.fail[action.Type]; ok {
			return err
		}
	}
	return nil
}

func (h *recordingHook) Applied() []ActionType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ActionType(nil), h.applied...)
}

func criticalPayments() health.ServiceHealth {
	return health.ServiceHealth{
		Name:           "payments",
		Status:         health.StatusCritical,
		ErrorRate:      0.15,
		ResponseTimeMS: 6000,
	}
}

func TestExecutor_RunsAllActionsAndResolves(t *testing.T) {
	hook := &recordingHook{}
	ledger := incident.NewLedger(zerolog.Nop(), nil, 10)
	executor := NewExecutor(zerolog.Nop(), hook, ledger)

	inc, err := executor.Recover(context.Background(), criticalPayments(), incident.KindAutoRecovery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	executor.Wait()

	want := []ActionType{ActionRestart, ActionCacheClear, ActionFailover}
	applied := hook.Applied()
	if len(applied) != len(want) {
		t.Fatalf("expected %d actions applied, got %v", len(want), applied)
	}
	for i, actionType := range want {
		if applied[i] != actionType {
			t.Fatalf("expected action %d to be %s, got %s", i, actionType, applied[i])
		}
	}

	final, ok := ledger.Get(inc.ID)
	if !ok {
		t.Fatalf("expected incident in ledger")
	}
	if final.Status != incident.StatusResolved {
		t.Fatalf("expected resolved, got %s", final.Status)
	}
	if final.DurationMS == nil {
		t.Fatalf("expected duration on resolved incident")
	}
	if len(final.Actions) != 3 {
		t.Fatalf("expected 3 action log entries, got %v", final.Actions)
	}
}

func TestExecutor_SingleActiveRecoveryPerService(t *testing.T) {
	hook := &recordingHook{block: make(chan struct{})}
	ledger := incident.NewLedger(zerolog.Nop(), nil, 10)
	executor := NewExecutor(zerolog.Nop(), hook, ledger)

	if _, err := executor.Recover(context.Background(), criticalPayments(), incident.KindManualIntervention); err != nil {
		t.Fatalf("unexpected error on first request: %v", err)
	}

	if _, err := executor.Recover(context.Background(), criticalPayments(), incident.KindManualIntervention); !errors.Is(err, ErrRecoveryInFlight) {
		t.Fatalf("expected ErrRecoveryInFlight, got %v", err)
	}

	close(hook.block)
	executor.Wait()

	// A different service is unaffected by payments' in-flight state.
	other := criticalPayments()
	other.Name = "checkout"
	if _, err := executor.Recover(context.Background(), other, incident.KindAutoRecovery); err != nil {
		t.Fatalf("unexpected error for other service: %v", err)
	}
	executor.Wait()
}

func TestExecutor_ActionFailureMarksIncidentFailed(t *testing.T) {
	hook := &recordingHook{fail: map[ActionType]error{ActionCacheClear: errors.New("cache node unreachable")}}
	ledger := incident.NewLedger(zerolog.Nop(), nil, 10)
	executor := NewExecutor(zerolog.Nop(), hook, ledger)

	inc, err := executor.Recover(context.Background(), criticalPayments(), incident.KindAutoRecovery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	executor.Wait()

	final, _ := ledger.Get(inc.ID)
	if final.Status != incident.StatusFailed {
		t.Fatalf("expected failed incident, got %s", final.Status)
	}
	if final.DurationMS == nil {
		t.Fatalf("expected duration on failed incident")
	}
	last := final.Actions[len(final.Actions)-1]
	if last != "cache_clear: failed: cache node unreachable" {
		t.Fatalf("expected failure reason in action log, got %q", last)
	}

	// Execution stopped at the failing action.
	applied := hook.Applied()
	if len(applied) != 2 {
		t.Fatalf("expected execution to stop after failure, got %v", applied)
	}

	// The slot is released so a later attempt can run.
	if executor.Active("payments") {
		t.Fatalf("expected slot released after failure")
	}
}

func TestExecutor_EmptyPlanBecomesManualIntervention(t *testing.T) {
	hook := &recordingHook{}
	ledger := incident.NewLedger(zerolog.Nop(), nil, 10)
	executor := NewExecutor(zerolog.Nop(), hook, ledger)

	inc, err := executor.Recover(context.Background(), health.ServiceHealth{
		Name:   "frontend",
		Status: health.StatusDegraded,
	}, incident.KindAutoRecovery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	executor.Wait()

	if inc.Kind != incident.KindManualIntervention {
		t.Fatalf("expected manual_intervention incident, got %s", inc.Kind)
	}
	if len(hook.Applied()) != 0 {
		t.Fatalf("expected no actions applied for empty plan")
	}
	final, _ := ledger.Get(inc.ID)
	if final.Status != incident.StatusInProgress {
		t.Fatalf("expected incident left for operator, got %s", final.Status)
	}
	if executor.Active("frontend") {
		t.Fatalf("expected no active execution for empty plan")
	}
}

func TestExecutor_ShutdownDoesNotAbortExecution(t *testing.T) {
	hook := &recordingHook{block: make(chan struct{})}
	ledger := incident.NewLedger(zerolog.Nop(), nil, 10)
	executor := NewExecutor(zerolog.Nop(), hook, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	inc, err := executor.Recover(ctx, criticalPayments(), incident.KindAutoRecovery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancel()
	time.Sleep(10 * time.Millisecond)
	close(hook.block)
	executor.Wait()

	final, _ := ledger.Get(inc.ID)
	if final.Status != incident.StatusResolved {
		t.Fatalf("expected recovery to finish despite cancellation, got %s", final.Status)
	}
}
