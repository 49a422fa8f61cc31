package metrics

import "github.com/prometheus/client_golang/prometheus"

// PreauthMetrics tracks the pre-auth interception proxy.
type PreauthMetrics struct {
	connections *prometheus.CounterVec
	forged      prometheus.Counter
	captured    prometheus.Counter
	relayBytes  *prometheus.CounterVec
}

// NewPreauthMetrics creates and registers the interception collectors.
func NewPreauthMetrics(registry *prometheus.Registry) *PreauthMetrics {
	m := &PreauthMetrics{
		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninja_preauth_connections_total",
				Help: "Total intercepted connections by outcome",
			},
			[]string{"outcome"},
		),

		forged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ninja_preauth_certificates_forged_total",
				Help: "Total leaf certificates forged (cache misses)",
			},
		),

		captured: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ninja_preauth_cookies_captured_total",
				Help: "Total anti-bot cookie captures",
			},
		),

		relayBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninja_preauth_relay_bytes_total",
				Help: "Bytes relayed through the interception proxy by direction",
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(m.connections, m.forged, m.captured, m.relayBytes)

	return m
}

// RecordConnection records one intercepted connection's outcome.
func (m *PreauthMetrics) RecordConnection(outcome string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(outcome).Inc()
}

// RecordForge records one leaf certificate synthesis.
func (m *PreauthMetrics) RecordForge() {
	if m == nil {
		return
	}
	m.forged.Inc()
}

// RecordCapture records one cookie capture.
func (m *PreauthMetrics) RecordCapture() {
	if m == nil {
		return
	}
	m.captured.Inc()
}

// RecordRelay records bytes copied in one direction of a relay.
func (m *PreauthMetrics) RecordRelay(direction string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.relayBytes.WithLabelValues(direction).Add(float64(bytes))
}
