package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PayoutMetrics records pipeline outcomes for the payout scheduler.
type PayoutMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	deferred prometheus.Counter
	alerts   *prometheus.GaugeVec
}

// NewPayoutMetrics registers the payout metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_duration_seconds",
		Help:    "Duration of payout pipeline runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_success",
		Help: "Completed payout disbursements.",
	}, []string{"method"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_failure",
		Help: "Failed payout attempts.",
	}, []string{"reason"})
	deferred := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payout_deferred",
		Help: "Calculations deferred below the payable minimum.",
	})
	alerts := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "payout_health_alert",
		Help: "Active health alert conditions (1 = firing).",
	}, []string{"condition"})
	reg.MustRegister(duration, success, failure, deferred, alerts)
	return &PayoutMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		deferred: deferred,
		alerts:   alerts,
	}
}

// ObserveDuration records the duration for the named pipeline stage.
func (p *PayoutMetrics) ObserveDuration(stage string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the transfer method.
func (p *PayoutMetrics) IncSuccess(method string) {
	if p == nil || p.success == nil {
		return
	}
	p.success.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncFailure increments the failure counter for the given reason.
func (p *PayoutMetrics) IncFailure(reason string) {
	if p == nil || p.failure == nil {
		return
	}
	p.failure.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncDeferred counts a below-minimum deferral.
func (p *PayoutMetrics) IncDeferred() {
	if p == nil || p.deferred == nil {
		return
	}
	p.deferred.Inc()
}

// SetAlert flips the gauge for a health alert condition.
func (p *PayoutMetrics) SetAlert(condition string, firing bool) {
	if p == nil || p.alerts == nil {
		return
	}
	value := 0.0
	if firing {
		value = 1.0
	}
	p.alerts.WithLabelValues(normalizeLabel(condition)).Set(value)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
