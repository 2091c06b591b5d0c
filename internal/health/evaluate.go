package health

import "fmt"

// Classification thresholds. Services above the degraded bounds trigger
// recovery planning; the critical error rate marks a service unreachable
// for practical purposes.
const (
	DegradedErrorRate      = 0.1
	CriticalErrorRate      = 0.5
	DegradedResponseTimeMS = 5000
	DegradedMemoryUsage    = 0.9
)

// Classify derives a status and its supporting reasons from a probe metric.
// Metrics already marked CRITICAL by the probe (timeout, transport error)
// keep that status.
func Classify(m Metric) (Status, []string) {
	if m.Status == StatusCritical {
		return StatusCritical, []string{"probe failed"}
	}

	status := StatusHealthy
	var reasons []string

	if m.ErrorRate >= CriticalErrorRate {
		status = Worsen(status, StatusCritical)
		reasons = append(reasons, fmt.Sprintf("error rate %.2f", m.ErrorRate))
	} else if m.ErrorRate > DegradedErrorRate {
		status = Worsen(status, StatusDegraded)
		reasons = append(reasons, fmt.Sprintf("error rate %.2f", m.ErrorRate))
	}

	if m.ResponseTimeMS > DegradedResponseTimeMS {
		status = Worsen(status, StatusDegraded)
		reasons = append(reasons, fmt.Sprintf("response time %dms", m.ResponseTimeMS))
	}

	if m.MemoryUsage > DegradedMemoryUsage {
		status = Worsen(status, StatusDegraded)
		reasons = append(reasons, fmt.Sprintf("memory usage %.2f", m.MemoryUsage))
	}

	return status, reasons
}

// Aggregate computes the overall status as the most severe status present.
// The precedence rule is order-independent across services.
func Aggregate(services map[string]ServiceHealth) Status {
	overall := StatusHealthy
	for _, service := range services {
		overall = Worsen(overall, service.Status)
	}
	return overall
}

// Worsen returns the more severe of two statuses.
func Worsen(current, next Status) Status {
	if severity(next) > severity(current) {
		return next
	}
	return current
}

func severity(status Status) int {
	switch status {
	case StatusCritical:
		return 3
	case StatusUnknown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
