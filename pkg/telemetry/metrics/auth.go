package metrics

import "github.com/prometheus/client_golang/prometheus"

// AuthMetrics tracks credential lifecycle activity.
type AuthMetrics struct {
	exchanges    *prometheus.CounterVec
	storedTokens prometheus.Gauge
}

// Exchange kinds recorded on the exchanges counter.
const (
	ExchangeLogin   = "login"
	ExchangeRefresh = "refresh"
	ExchangeRevoke  = "revoke"
	ExchangeSession = "session"
)

// NewAuthMetrics creates and registers the credential collectors.
func NewAuthMetrics(registry *prometheus.Registry) *AuthMetrics {
	m := &AuthMetrics{
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninja_auth_exchanges_total",
				Help: "Total identity exchanges by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		storedTokens: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ninja_auth_stored_tokens",
				Help: "Number of credentials currently held by the token store",
			},
		),
	}

	registry.MustRegister(m.exchanges, m.storedTokens)

	return m
}

// RecordExchange records one identity exchange.
func (m *AuthMetrics) RecordExchange(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.exchanges.WithLabelValues(kind, outcome).Inc()
}

// SetStoredTokens records the token store's current size.
func (m *AuthMetrics) SetStoredTokens(n int) {
	if m == nil {
		return
	}
	m.storedTokens.Set(float64(n))
}
