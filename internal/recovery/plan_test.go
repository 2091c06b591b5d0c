package recovery

import (
	"testing"
	"time"

	"github.com/nholik/healthwatch/internal/health"
)

func TestBuildPlan_HealthyInputIsEmpty(t *testing.T) {
	plan := BuildPlan(health.ServiceHealth{
		Name:           "api",
		Status:         health.StatusHealthy,
		ErrorRate:      0,
		ResponseTimeMS: 200,
	})

	if len(plan.Actions) != 0 {
		t.Fatalf("expected empty action list, got %v", plan.Actions)
	}
	if !plan.Empty() {
		t.Fatalf("expected empty plan")
	}
	if plan.EstimatedDuration != 0 {
		t.Fatalf("expected zero estimated duration, got %s", plan.EstimatedDuration)
	}
}

func TestBuildPlan_CriticalPaymentsScenario(t *testing.T) {
	plan := BuildPlan(health.ServiceHealth{
		Name:           "payments",
		Status:         health.StatusCritical,
		ErrorRate:      0.15,
		ResponseTimeMS: 6000,
	})

	want := []ActionType{ActionRestart, ActionCacheClear, ActionFailover}
	if len(plan.Actions) != len(want) {
		t.Fatalf("expected %d actions, got %d", len(want), len(plan.Actions))
	}
	for i, actionType := range want {
		if plan.Actions[i].Type != actionType {
			t.Fatalf("expected action %d to be %s, got %s", i, actionType, plan.Actions[i].Type)
		}
		if !plan.Actions[i].Automated {
			t.Fatalf("expected %s to be automated", actionType)
		}
	}
	if plan.Priority != PriorityCritical {
		t.Fatalf("expected critical priority, got %s", plan.Priority)
	}
	if plan.EstimatedDuration != 90*time.Second {
		t.Fatalf("expected 90s estimate, got %s", plan.EstimatedDuration)
	}
}

func TestBuildPlan_DegradedGetsHighPriority(t *testing.T) {
	plan := BuildPlan(health.ServiceHealth{
		Name:      "db",
		Status:    health.StatusDegraded,
		ErrorRate: 0.2,
	})

	if plan.Priority != PriorityHigh {
		t.Fatalf("expected high priority, got %s", plan.Priority)
	}
	if len(plan.Actions) != 1 || plan.Actions[0].Type != ActionRestart {
		t.Fatalf("expected single restart action, got %v", plan.Actions)
	}
	if plan.EstimatedDuration != 30*time.Second {
		t.Fatalf("expected 30s estimate, got %s", plan.EstimatedDuration)
	}
}

func TestBuildPlan_SlowResponseOnly(t *testing.T) {
	plan := BuildPlan(health.ServiceHealth{
		Name:           "cache",
		Status:         health.StatusDegraded,
		ResponseTimeMS: 7500,
	})

	if len(plan.Actions) != 1 || plan.Actions[0].Type != ActionCacheClear {
		t.Fatalf("expected single cache_clear action, got %v", plan.Actions)
	}
}
