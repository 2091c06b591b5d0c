package health

import "time"

// Status classifies a service's operational condition.
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusDegraded Status = "DEGRADED"
	StatusCritical Status = "CRITICAL"
	StatusUnknown  Status = "UNKNOWN"
)

// Metric is a single probe result. Created once per probe, never mutated.
type Metric struct {
	Service        string    `json:"service"`
	Status         Status    `json:"status"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	ErrorRate      float64   `json:"error_rate"`
	MemoryUsage    float64   `json:"memory_usage"`
	CPUUsage       float64   `json:"cpu_usage"`
	Timestamp      time.Time `json:"timestamp"`
}

// ServiceHealth is the monitor's current view of one service.
// One instance per registered service, overwritten each cycle.
type ServiceHealth struct {
	Name           string    `json:"name"`
	Status         Status    `json:"status"`
	LastCheck      time.Time `json:"last_check"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	ErrorRate      float64   `json:"error_rate"`
	UptimeRatio    float64   `json:"uptime"`
	Reasons        []string  `json:"reasons,omitempty"`
}
