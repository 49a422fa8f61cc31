// Package telemetry groups the gateway's observability concerns.
//
//   - logging: structured slog output with credential redaction
//   - metrics: Prometheus collectors and the /metrics endpoint
//   - health: liveness and readiness endpoints
package telemetry
