// Package logging provides structured logging for the ninja gateway.
//
// # Overview
//
// Logger wraps log/slog with level/format selection and credential
// redaction. Every component receives a *Logger (or derives one with
// Component) rather than using the process-global slog default, so tests
// can capture output and redaction policy is applied uniformly.
//
// # Redaction
//
// Access tokens, refresh tokens, session cookies, Authorization headers,
// and pre-shared login keys must never appear in logs. The Redactor
// replaces values of known-sensitive keys wholesale and pattern-scrubs all
// other string values.
//
// # Context fields
//
// Request-scoped values (request_id, route_class, bucket_key, user) travel
// in context.Context; the *Context logging methods extract and attach them
// automatically.
package logging
