package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDegraded ProbeStatus = "degraded"
	StatusDown     ProbeStatus = "down"
)

// DefaultProbeTimeout bounds a check that does not set its own deadline.
const DefaultProbeTimeout = 5 * time.Second

var statusRank = map[ProbeStatus]int{StatusUp: 0, StatusDegraded: 1, StatusDown: 2}

// Worse returns the more severe of two statuses. Unknown statuses count as down.
func Worse(a, b ProbeStatus) ProbeStatus {
	ra, ok := statusRank[a]
	if !ok {
		return StatusDown
	}
	rb, ok := statusRank[b]
	if !ok {
		return StatusDown
	}
	if rb > ra {
		return b
	}
	return a
}

// ProbeResult captures a single component check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results for a liveness or readiness evaluation.
type HealthReport struct {
	Success   bool          `json:"success"`
	Status    ProbeStatus   `json:"status"`
	Checks    []ProbeResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Check is a named probe. Timeout falls back to DefaultProbeTimeout.
type Check struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) ProbeResult
}

// NewCheck constructs a health check with the provided name and function.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	return Check{Name: name, Run: fn}
}

// WithTimeout returns a copy of the check bounded by d.
func (c Check) WithTimeout(d time.Duration) Check {
	c.Timeout = d
	return c
}

type probeKind int

const (
	liveness probeKind = iota
	readiness
)

// HealthManager runs the engine's liveness and readiness probes. Registration is safe while
// probes are being served.
type HealthManager struct {
	mu     sync.RWMutex
	checks map[probeKind][]Check
	now    func() time.Time
}

// NewHealthManager constructs an empty health manager.
func NewHealthManager() *HealthManager {
	return &HealthManager{
		checks: make(map[probeKind][]Check),
		now:    time.Now,
	}
}

// RegisterLiveness adds a probe reporting whether background work is progressing.
func (m *HealthManager) RegisterLiveness(check Check) {
	m.register(liveness, check)
}

// RegisterReadiness adds a probe gating traffic, such as the database ping.
func (m *HealthManager) RegisterReadiness(check Check) {
	m.register(readiness, check)
}

func (m *HealthManager) register(kind probeKind, check Check) {
	if check.Name == "" {
		return
	}
	m.mu.Lock()
	m.checks[kind] = append(m.checks[kind], check)
	m.mu.Unlock()
}

// EvaluateLiveness executes all configured liveness checks.
func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, liveness)
}

// EvaluateReadiness executes all configured readiness checks.
func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, readiness)
}

// evaluate runs the probes concurrently and keeps results in registration order.
func (m *HealthManager) evaluate(ctx context.Context, kind probeKind) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.RLock()
	checks := append([]Check(nil), m.checks[kind]...)
	m.mu.RUnlock()

	results := make([]ProbeResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			results[i] = runCheck(ctx, check)
		}(i, check)
	}
	wg.Wait()

	status := StatusUp
	for _, result := range results {
		status = Worse(status, result.Status)
	}

	return HealthReport{
		Success:   status == StatusUp,
		Status:    status,
		Checks:    results,
		CheckedAt: m.now().UTC(),
	}
}

func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: panicDetails(rec)}
		}
		result.Component = check.Name
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
	}()

	if check.Run == nil {
		return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
	}

	timeout := check.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return check.Run(probeCtx)
}

func panicDetails(rec any) string {
	switch v := rec.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("panic recovered: %v", v)
	}
}

// ResultFromError converts a probe error into a result. Deadlines degrade rather than fail
// because a slow dependency still answers eventually.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}

	return ProbeResult{
		Component: component,
		Status:    status,
		Details:   err.Error(),
		Duration:  duration,
	}
}
