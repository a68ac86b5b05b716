// Package health provides source health monitoring and the HTTP surface.
package health

import (
	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/resilience"
	"github.com/vietddude/buildforge/internal/infra/source"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// SourceHealth contains health details for a single source.
type SourceHealth struct {
	SourceID  string                  `json:"source_id"`
	Status    SystemStatus            `json:"status"`
	Reachable bool                    `json:"reachable"`
	Circuit   domain.CircuitState     `json:"circuit"`
	Limiter   resilience.LimiterUsage `json:"limiter"`
	Traffic   *source.MonitorStats    `json:"traffic,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus            `json:"system_status"`
	Sources      map[string]SourceHealth `json:"sources"`
}

// Overall folds per-source health into a system status. Fallback data keeps
// the service answering, so the system is critical only when every source is.
func Overall(sources map[string]SourceHealth) SystemStatus {
	if len(sources) == 0 {
		return StatusCritical
	}
	status := StatusHealthy
	critical := 0
	for _, s := range sources {
		switch s.Status {
		case StatusCritical:
			critical++
			status = StatusDegraded
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	if critical == len(sources) {
		return StatusCritical
	}
	return status
}
