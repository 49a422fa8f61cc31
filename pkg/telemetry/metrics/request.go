package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks proxied traffic per route class.
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	streamsTotal    *prometheus.CounterVec
	streamChunks    prometheus.Counter
	inFlight        prometheus.Gauge
}

// NewRequestMetrics creates and registers the proxied-traffic collectors.
func NewRequestMetrics(registry *prometheus.Registry) *RequestMetrics {
	m := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninja_proxy_requests_total",
				Help: "Total proxied requests by route class, method, and status",
			},
			[]string{"route_class", "method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ninja_proxy_request_duration_seconds",
				Help:    "Duration of proxied requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"route_class"},
		),

		streamsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninja_proxy_streams_total",
				Help: "Total converted event streams by route class and outcome",
			},
			[]string{"route_class", "outcome"},
		),

		streamChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ninja_proxy_stream_chunks_total",
				Help: "Total delta chunks emitted by the streaming converter",
			},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ninja_proxy_in_flight_requests",
				Help: "Number of proxied requests currently in flight",
			},
		),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.streamsTotal, m.streamChunks, m.inFlight)

	return m
}

// RecordRequest records one completed proxied request.
func (m *RequestMetrics) RecordRequest(routeClass, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(routeClass, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(routeClass).Observe(duration.Seconds())
}

// RecordStream records one finished converted stream and its chunk count.
func (m *RequestMetrics) RecordStream(routeClass, outcome string, chunks int) {
	if m == nil {
		return
	}
	m.streamsTotal.WithLabelValues(routeClass, outcome).Inc()
	m.streamChunks.Add(float64(chunks))
}

// RequestStarted marks a request in flight. The returned func marks it
// finished.
func (m *RequestMetrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}
