package health

import (
	"context"
	"sync"
	"time"
)

// Status values for a component check.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusCritical Status = "critical"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report maps component name to check result.
type Report map[string]ComponentHealth

// Monitor runs registered dependency checks on demand.
type Monitor struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{checks: make(map[string]Check)}
}

// RegisterCheck adds a named dependency check.
func (m *Monitor) RegisterCheck(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// CheckHealth runs all checks and returns the per-component report.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, c := range m.checks {
		checks[name] = c
	}
	m.mu.RUnlock()

	report := make(Report, len(checks))
	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := check(checkCtx)
		cancel()

		h := ComponentHealth{Status: StatusHealthy, CheckedAt: time.Now()}
		if err != nil {
			h.Status = StatusCritical
			h.Error = err.Error()
		}
		report[name] = h
	}
	return report
}
