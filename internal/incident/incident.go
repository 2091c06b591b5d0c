package incident

import "time"

// Kind classifies what initiated a recovery attempt.
type Kind string

const (
	KindAutoRecovery       Kind = "auto_recovery"
	KindPreventiveAction   Kind = "preventive_action"
	KindManualIntervention Kind = "manual_intervention"
)

// Status is the lifecycle state of an incident.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusFailed     Status = "failed"
)

// Incident records one recovery attempt. DurationMS is set exactly when the
// incident reaches a terminal status.
type Incident struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"type"`
	Service     string    `json:"service"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	DurationMS  *int64    `json:"duration_ms,omitempty"`
	Actions     []string  `json:"actions"`
}

func (i Incident) clone() Incident {
	copied := i
	copied.Actions = append([]string(nil), i.Actions...)
	if i.DurationMS != nil {
		value := *i.DurationMS
		copied.DurationMS = &value
	}
	return copied
}
