package limits

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus collectors for the admission-control layer.
//
// Labels stay low-cardinality: strategy and outcome only. Bucket keys are
// client tokens and addresses, which are both unbounded and sensitive, so
// they never appear as label values.
type Metrics struct {
	checks        *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	trackedKeys   prometheus.Gauge
	evictions     prometheus.Counter
}

// NewMetrics creates and registers the limiter collectors with the given
// registry. A nil registry creates a private one, which keeps repeated
// construction (tests, reloads) from colliding.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninja_limits_checks_total",
				Help: "Total number of admission checks by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),

		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ninja_limits_check_duration_seconds",
				Help:    "Duration of admission checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs to 262ms
			},
			[]string{"strategy"},
		),

		trackedKeys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ninja_limits_tracked_keys",
				Help: "Number of bucket keys currently tracked by the backend",
			},
		),

		evictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ninja_limits_evictions_total",
				Help: "Total number of idle bucket keys evicted",
			},
		),
	}

	registry.MustRegister(m.checks, m.checkDuration, m.trackedKeys, m.evictions)

	return m
}

// Check outcomes recorded on the checks counter.
const (
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

// RecordCheck records one admission check.
func (m *Metrics) RecordCheck(strategy, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(strategy, outcome).Inc()
	m.checkDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordEvictions records a sweep that removed n idle keys.
func (m *Metrics) RecordEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// SetTrackedKeys records the current backend key count.
func (m *Metrics) SetTrackedKeys(n int) {
	if m == nil {
		return
	}
	m.trackedKeys.Set(float64(n))
}
