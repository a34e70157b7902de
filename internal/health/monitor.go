package health

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
)

// Alert conditions tracked by the monitor.
const (
	ConditionSlowProcessing  = "slow_processing"
	ConditionHighFailureRate = "high_failure_rate"
)

// escalateAfter is how many consecutive evaluations a condition must keep
// firing before a warning becomes critical.
const escalateAfter = 5

// Severity orders alert escalation levels.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one active condition with its current severity.
type Alert struct {
	Condition  string
	Severity   Severity
	Message    string
	FirstSeen  time.Time
	LastSeen   time.Time
	Occurrence int
}

// Monitor keeps a rolling window of payout attempt samples and raises
// alerts on sustained slowness or elevated failure rates. Raising an already
// active condition only bumps its occurrence count and severity; it never
// duplicates the alert.
type Monitor struct {
	mu      sync.Mutex
	samples []sample
	next    int
	filled  bool

	alerts map[string]*Alert

	cfg     config.HealthConfig
	metrics *metrics.PayoutMetrics
	logger  *logger.Logger
	now     func() time.Time
}

type sample struct {
	duration time.Duration
	success  bool
}

// NewMonitor builds a health monitor over a fixed-size sample window.
func NewMonitor(cfg config.HealthConfig, payoutMetrics *metrics.PayoutMetrics, logg *logger.Logger) *Monitor {
	if cfg.SampleWindow <= 0 {
		cfg.SampleWindow = 100
	}
	return &Monitor{
		samples: make([]sample, cfg.SampleWindow),
		alerts:  map[string]*Alert{},
		cfg:     cfg,
		metrics: payoutMetrics,
		logger:  logg,
		now:     time.Now,
	}
}

// SetNow overrides the clock. Test hook.
func (m *Monitor) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Record adds one payout attempt outcome and re-evaluates both conditions.
func (m *Monitor) Record(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples[m.next] = sample{duration: duration, success: success}
	m.next++
	if m.next == len(m.samples) {
		m.next = 0
		m.filled = true
	}

	m.evaluate()
}

func (m *Monitor) size() int {
	if m.filled {
		return len(m.samples)
	}
	return m.next
}

func (m *Monitor) evaluate() {
	count := m.size()
	if count == 0 {
		return
	}

	var total time.Duration
	failures := 0
	for i := 0; i < count; i++ {
		total += m.samples[i].duration
		if !m.samples[i].success {
			failures++
		}
	}

	average := total / time.Duration(count)
	if average > m.cfg.SlowThreshold {
		m.raise(ConditionSlowProcessing, "average payout processing time exceeds threshold")
	} else {
		m.resolve(ConditionSlowProcessing)
	}

	// Failure rate needs a minimum sample count before it means anything.
	if count >= m.cfg.MinSamples {
		rate := float64(failures) / float64(count)
		if rate > m.cfg.FailureRateThreshold {
			m.raise(ConditionHighFailureRate, "payout failure rate exceeds threshold")
		} else {
			m.resolve(ConditionHighFailureRate)
		}
	}
}

// raise is idempotent per condition: repeats escalate, they do not duplicate.
func (m *Monitor) raise(condition, message string) {
	now := m.now().UTC()
	alert, active := m.alerts[condition]
	if active {
		alert.Occurrence++
		alert.LastSeen = now
		if alert.Occurrence >= escalateAfter && alert.Severity == SeverityWarning {
			alert.Severity = SeverityCritical
			if m.logger != nil {
				m.logger.Warn(m.logger.WithFields(context.Background(), map[string]any{
					"condition": condition,
					"severity":  string(SeverityCritical),
				}), "health alert escalated")
			}
		}
		return
	}

	m.alerts[condition] = &Alert{
		Condition:  condition,
		Severity:   SeverityWarning,
		Message:    message,
		FirstSeen:  now,
		LastSeen:   now,
		Occurrence: 1,
	}
	m.metrics.SetAlert(condition, true)
	if m.logger != nil {
		m.logger.Warn(m.logger.WithField(context.Background(), "condition", condition), "health alert raised")
	}
}

func (m *Monitor) resolve(condition string) {
	if _, active := m.alerts[condition]; !active {
		return
	}
	delete(m.alerts, condition)
	m.metrics.SetAlert(condition, false)
	if m.logger != nil {
		m.logger.Info(m.logger.WithField(context.Background(), "condition", condition), "health alert resolved")
	}
}

// Resolve clears a condition manually.
func (m *Monitor) Resolve(condition string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolve(condition)
}

// ActiveAlerts returns a snapshot of the currently firing alerts.
func (m *Monitor) ActiveAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		out = append(out, *alert)
	}
	return out
}
