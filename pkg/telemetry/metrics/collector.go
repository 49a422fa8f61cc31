package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector bundles the gateway's Prometheus collectors around one
// registry.
type Collector struct {
	registry *prometheus.Registry

	Request *RequestMetrics
	Auth    *AuthMetrics
	Preauth *PreauthMetrics
}

// NewCollector creates a registry with process and Go runtime
// collectors plus the gateway's own. A nil registry creates a fresh
// private one, which keeps repeated construction in tests from
// colliding on duplicate registration.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry: registry,
		Request:  NewRequestMetrics(registry),
		Auth:     NewAuthMetrics(registry),
		Preauth:  NewPreauthMetrics(registry),
	}
}

// Registry returns the underlying registry so other subsystems (the
// admission layer) can register their collectors alongside.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
