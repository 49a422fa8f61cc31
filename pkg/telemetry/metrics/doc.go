// Package metrics provides Prometheus instrumentation for the gateway.
//
// A single Collector owns the registry and the collectors for proxied
// traffic, credential exchanges, and the pre-auth interception proxy.
// The admission layer registers its own collectors against the same
// registry (see pkg/limits). Everything is exposed through one
// /metrics handler.
//
// Label sets stay low-cardinality on purpose: route classes, methods,
// statuses, and outcomes. Client identities, paths, and tokens never
// become label values.
package metrics
