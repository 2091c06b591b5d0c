package recovery

import (
	"fmt"
	"time"

	"github.com/nholik/healthwatch/internal/health"
)

// ActionType is the closed set of recovery action kinds. The executor
// matches it exhaustively; adding a kind requires updating the hook path.
type ActionType string

const (
	ActionRestart    ActionType = "restart"
	ActionCacheClear ActionType = "cache_clear"
	ActionFailover   ActionType = "failover"
)

// Action is a single remediation step in a plan.
type Action struct {
	Type        ActionType `json:"type"`
	Description string     `json:"description"`
	Automated   bool       `json:"automated"`
}

// Priority ranks a plan's urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// perActionBudget is a conservative duration estimate per planned action.
const perActionBudget = 30 * time.Second

// Plan is an ordered set of recovery actions for one service. Plans are
// ephemeral: built per attempt and discarded after execution.
type Plan struct {
	Service           string        `json:"service"`
	Actions           []Action      `json:"actions"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	Priority          Priority      `json:"priority"`
}

// Empty reports whether the plan contains no automated actions. The caller
// treats an empty plan as "no automated recovery available".
func (p Plan) Empty() bool {
	for _, action := range p.Actions {
		if action.Automated {
			return false
		}
	}
	return true
}

// BuildPlan derives a recovery plan from a service's current health. Rules
// are evaluated independently; action order is significant and authoritative
// for the executor.
func BuildPlan(h health.ServiceHealth) Plan {
	plan := Plan{
		Service:  h.Name,
		Priority: PriorityHigh,
	}
	if h.Status == health.StatusCritical {
		plan.Priority = PriorityCritical
	}

	if h.ErrorRate > health.DegradedErrorRate {
		plan.Actions = append(plan.Actions, Action{
			Type:        ActionRestart,
			Description: fmt.Sprintf("restart %s: error rate %.2f above %.2f", h.Name, h.ErrorRate, health.DegradedErrorRate),
			Automated:   true,
		})
	}

	if h.ResponseTimeMS > health.DegradedResponseTimeMS {
		plan.Actions = append(plan.Actions, Action{
			Type:        ActionCacheClear,
			Description: fmt.Sprintf("clear caches for %s: response time %dms above %dms", h.Name, h.ResponseTimeMS, health.DegradedResponseTimeMS),
			Automated:   true,
		})
	}

	if h.Status == health.StatusCritical {
		plan.Actions = append(plan.Actions, Action{
			Type:        ActionFailover,
			Description: fmt.Sprintf("fail over %s to standby", h.Name),
			Automated:   true,
		})
	}

	plan.EstimatedDuration = time.Duration(len(plan.Actions)) * perActionBudget
	return plan
}
