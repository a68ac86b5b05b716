package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/buildforge/internal/aggregate"
	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/source"
)

const (
	defaultCheckInterval = 10 * time.Second
	probeTimeout         = 3 * time.Second
)

// Monitor aggregates health status of every registered source.
type Monitor struct {
	registry *aggregate.Registry
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport map[string]SourceHealth
}

// NewMonitor creates a new health monitor over registry.
func NewMonitor(registry *aggregate.Registry) *Monitor {
	return &Monitor{
		registry:   registry,
		interval:   defaultCheckInterval,
		now:        time.Now,
		lastReport: make(map[string]SourceHealth),
	}
}

// CheckHealth probes every source. Results are reused for the check
// interval so health endpoints do not hammer the sources.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]SourceHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.lastCheck) < m.interval && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]SourceHealth, m.registry.Len())
	for _, e := range m.registry.Entries() {
		report[e.ID()] = m.check(ctx, e)
	}

	m.lastCheck = m.now()
	m.lastReport = report
	return report
}

// Report returns the per-source health with the folded system status.
func (m *Monitor) Report(ctx context.Context) HealthReport {
	sources := m.CheckHealth(ctx)
	return HealthReport{SystemStatus: Overall(sources), Sources: sources}
}

func (m *Monitor) check(ctx context.Context, e *aggregate.Entry) SourceHealth {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	h := SourceHealth{
		SourceID:  e.ID(),
		Status:    StatusHealthy,
		Reachable: e.Client.HealthCheck(probeCtx),
		Circuit:   e.Breaker.Snapshot(),
		Limiter:   e.Limiter.Usage(),
	}
	if mon, ok := e.Client.(source.Monitored); ok {
		stats := mon.Monitor().Stats()
		h.Traffic = &stats
	}

	switch {
	case !h.Reachable || h.Circuit.State == domain.CircuitOpen:
		h.Status = StatusCritical
	case h.Traffic != nil && (h.Traffic.Status == source.StatusBlocked || h.Traffic.Status == source.StatusThrottled):
		h.Status = StatusCritical
	case h.Circuit.State == domain.CircuitHalfOpen:
		h.Status = StatusDegraded
	case h.Traffic != nil && h.Traffic.Status == source.StatusDegraded:
		h.Status = StatusDegraded
	case h.Limiter.DailyQuota > 0 && h.Limiter.DailyUsed >= h.Limiter.DailyQuota:
		h.Status = StatusDegraded
	}
	return h
}
