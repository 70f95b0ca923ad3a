// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// NetworkHealth contains health metrics for the indexed network.
type NetworkHealth struct {
	Network      string       `json:"network"`
	Status       SystemStatus `json:"status"`
	Running      bool         `json:"running"`
	MasterLag    uint64       `json:"master_lag"`
	FailedBlocks int          `json:"failed_blocks"`
	LastError    string       `json:"last_error,omitempty"`
}

// ComponentHealth is the result of a dependency check.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Network      NetworkHealth              `json:"network"`
	Components   map[string]ComponentHealth `json:"components,omitempty"`
}
