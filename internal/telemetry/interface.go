package telemetry

import "time"

// HealthStatus is the aggregated condition reported by /health.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusCritical HealthStatus = "critical"
)

// ChipHealth is the latest observation of one chip.
type ChipHealth struct {
	Chip             string       `json:"chip"`
	Status           HealthStatus `json:"status"`
	MonitorStatus    string       `json:"monitor_status"`
	HealthScore      int          `json:"health_score"`
	DegradationLevel int          `json:"degradation_level"`
	Active           bool         `json:"active"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
