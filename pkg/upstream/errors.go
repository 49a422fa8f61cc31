package upstream

import "fmt"

// ConnectError represents a failure to reach the upstream at all:
// DNS, dial, or TLS failure, or a broken connection mid-request.
// The gateway surfaces it as Bad Gateway.
type ConnectError struct {
	// URL is the request target, credentials redacted.
	URL string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("upstream unreachable (%s): %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents a request abandoned because its context
// deadline fired. The gateway surfaces it as Request Timeout.
type TimeoutError struct {
	// URL is the request target, credentials redacted.
	URL string

	// Cause is the underlying error, usually context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream request timed out (%s): %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ExchangeError represents an identity exchange the upstream answered
// but rejected (login, refresh, revoke, session lookup).
type ExchangeError struct {
	// URL is the exchange endpoint.
	URL string

	// StatusCode is the upstream HTTP status.
	StatusCode int

	// Message is the upstream error body, truncated.
	Message string
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	return fmt.Sprintf("identity exchange rejected (status %d, %s): %s", e.StatusCode, e.URL, e.Message)
}

// ParseError represents a malformed upstream response body.
type ParseError struct {
	// URL is the request target.
	URL string

	// Cause is the underlying decode error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed upstream response (%s): %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
