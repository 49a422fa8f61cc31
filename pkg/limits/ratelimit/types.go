package ratelimit

import "time"

// CheckResult describes the outcome of an admission check for one key.
type CheckResult struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Reason is a short machine-readable explanation when denied,
	// e.g. "rate_limit_exceeded" or "backend_error".
	Reason string

	// Limit is the bucket capacity in effect for this key.
	Limit int64

	// Remaining is the number of whole tokens left after this check.
	Remaining int64

	// RetryAfter is the suggested wait before the next attempt can
	// succeed. Zero when Allowed is true.
	RetryAfter time.Duration
}

// Denial reasons reported in CheckResult.Reason and surfaced as the
// "reason" label on limiter metrics.
const (
	ReasonRateLimited  = "rate_limit_exceeded"
	ReasonBackendError = "backend_error"
)
