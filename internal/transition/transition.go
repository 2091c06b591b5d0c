package transition

import (
	"sort"

	"github.com/nholik/healthwatch/internal/health"
)

// ServiceTransition captures a status change between two monitor cycles.
type ServiceTransition struct {
	Name           string
	PreviousStatus health.Status
	CurrentStatus  health.Status
	Reasons        []string
	ResponseTimeMS int64
	ErrorRate      float64
}

// Detect compares the previous cycle's health view with the current one and
// emits a transition per changed service. On the first cycle (empty previous
// view) only non-healthy services are reported, so a clean start stays quiet.
func Detect(prev, current map[string]health.ServiceHealth) []ServiceTransition {
	firstRun := len(prev) == 0

	transitions := make([]ServiceTransition, 0)
	for name, currentService := range current {
		prevService, hadPrev := prev[name]

		if firstRun {
			if currentService.Status == health.StatusHealthy {
				continue
			}
		} else if hadPrev {
			if prevService.Status == currentService.Status {
				continue
			}
		} else if currentService.Status == health.StatusHealthy {
			continue
		}

		transitions = append(transitions, ServiceTransition{
			Name:           name,
			PreviousStatus: prevService.Status,
			CurrentStatus:  currentService.Status,
			Reasons:        append([]string(nil), currentService.Reasons...),
			ResponseTimeMS: currentService.ResponseTimeMS,
			ErrorRate:      currentService.ErrorRate,
		})
	}

	// Sort by service name for deterministic output
	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].Name < transitions[j].Name
	})

	return transitions
}
