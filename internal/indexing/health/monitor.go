package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/poolwatch/internal/indexing/indexer"
)

// StatusSource reports the indexer state.
type StatusSource interface {
	GetStatus() indexer.Status
}

// FailedCounter counts pending failed blocks of a network.
type FailedCounter interface {
	Count(ctx context.Context, network string) (int, error)
}

// Check pings a dependency such as the database or Redis.
type Check func(ctx context.Context) error

// Thresholds decide when lag and failures degrade the status.
type Thresholds struct {
	DegradedLag    uint64
	CriticalLag    uint64
	CriticalFailed int
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{DegradedLag: 10, CriticalLag: 100, CriticalFailed: 50}
}

// Monitor aggregates health status from various system components.
type Monitor struct {
	source     StatusSource
	failedRepo FailedCounter
	checks     map[string]Check
	thresholds Thresholds
	cacheFor   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. failedRepo may be nil.
func NewMonitor(source StatusSource, failedRepo FailedCounter, thresholds Thresholds) *Monitor {
	return &Monitor{
		source:     source,
		failedRepo: failedRepo,
		checks:     make(map[string]Check),
		thresholds: thresholds,
		cacheFor:   10 * time.Second,
	}
}

// AddCheck registers a dependency check reported under name.
func (m *Monitor) AddCheck(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// CheckHealth builds a report. Results are cached briefly so probes do not
// hammer the database.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheFor {
		return *m.lastReport
	}

	st := m.source.GetStatus()
	network := NetworkHealth{
		Network:   st.Network,
		Status:    StatusHealthy,
		Running:   st.Running,
		LastError: st.LastError,
	}
	if st.Lag > 0 {
		network.MasterLag = uint64(st.Lag)
	}
	if m.failedRepo != nil {
		if n, err := m.failedRepo.Count(ctx, st.Network); err == nil {
			network.FailedBlocks = n
		}
	}

	t := m.thresholds
	switch {
	case network.MasterLag > t.CriticalLag || network.FailedBlocks > t.CriticalFailed:
		network.Status = StatusCritical
	case !network.Running || network.MasterLag > t.DegradedLag || network.FailedBlocks > 0:
		network.Status = StatusDegraded
	}

	report := HealthReport{
		SystemStatus: network.Status,
		Network:      network,
	}

	if len(m.checks) > 0 {
		report.Components = make(map[string]ComponentHealth, len(m.checks))
		for name, check := range m.checks {
			c := ComponentHealth{Status: StatusHealthy}
			if err := check(ctx); err != nil {
				c.Status = StatusCritical
				c.Error = err.Error()
				report.SystemStatus = StatusCritical
			}
			report.Components[name] = c
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}
