package types

import "net/http"

// ErrorResponse is the JSON envelope returned for every error condition,
// compatible with the provider's own error shape so existing SDKs keep
// working against the gateway.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error; see the ErrorType constants.
	Type string `json:"type"`

	// Param is the name of the parameter that caused the error, when
	// one field is at fault.
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error type constants. Each maps to exactly one HTTP status.
const (
	// ErrorTypeInvalidRequest indicates a client-side error, including
	// an upstream-rejected login/refresh/revoke exchange (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeAuthentication indicates a missing or invalid
	// credential or pre-shared key (401).
	ErrorTypeAuthentication = "authentication_error"

	// ErrorTypeNotFound indicates no route matched (404).
	ErrorTypeNotFound = "not_found"

	// ErrorTypeTimeout indicates the upstream call or the admission
	// queue exceeded its deadline (408).
	ErrorTypeTimeout = "timeout"

	// ErrorTypeRateLimitExceeded indicates admission control denied
	// the request (429).
	ErrorTypeRateLimitExceeded = "rate_limit_exceeded"

	// ErrorTypeServerError indicates serialization, certificate, or
	// unexpected I/O failure (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeBadGateway indicates the upstream is unreachable (502).
	ErrorTypeBadGateway = "bad_gateway"

	// ErrorTypeSessionExpired indicates the session expired mid-use;
	// the client should re-authenticate (307, with a Location header).
	ErrorTypeSessionExpired = "session_expired"
)

// Error code constants for common scenarios.
const (
	// CodeMissingField indicates a required field is missing.
	CodeMissingField = "missing_field"

	// CodeInvalidValue indicates a field has an invalid value.
	CodeInvalidValue = "invalid_value"

	// CodeInvalidJSON indicates the request body is not valid JSON.
	CodeInvalidJSON = "invalid_json"

	// CodeRequestTooLarge indicates the request body exceeds the size cap.
	CodeRequestTooLarge = "request_too_large"

	// CodeInternalError indicates an internal gateway failure.
	CodeInternalError = "internal_error"

	// CodeUpstreamError indicates the upstream returned a failure.
	CodeUpstreamError = "upstream_error"

	// CodeUpstreamTimeout indicates the upstream call timed out.
	CodeUpstreamTimeout = "upstream_timeout"

	// CodeRateLimitExceeded indicates admission control denied the request.
	CodeRateLimitExceeded = "rate_limit_exceeded"

	// CodeAuthenticationFailed indicates the credential was rejected.
	CodeAuthenticationFailed = "authentication_failed"

	// CodeSessionExpired indicates the session is no longer valid.
	CodeSessionExpired = "session_expired"
)

// NewErrorResponse creates an error response with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError creates an error response for invalid requests (400).
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewAuthenticationError creates an error response for credential failures (401).
func NewAuthenticationError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeAuthentication, "", CodeAuthenticationFailed)
}

// NewNotFoundError creates an error response for unmatched routes (404).
func NewNotFoundError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeNotFound, "", "")
}

// NewTimeoutError creates an error response for deadline failures (408).
func NewTimeoutError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeTimeout, "", CodeUpstreamTimeout)
}

// NewRateLimitError creates an error response for admission denials (429).
func NewRateLimitError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeRateLimitExceeded, "", CodeRateLimitExceeded)
}

// NewServerError creates an error response for internal failures (500).
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewBadGatewayError creates an error response for unreachable upstreams (502).
func NewBadGatewayError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, "", CodeUpstreamError)
}

// NewSessionExpiredError creates an error response telling the client to
// re-authenticate (307).
func NewSessionExpiredError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeSessionExpired, "", CodeSessionExpired)
}

// HTTPStatusCode returns the HTTP status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeTimeout:
		return http.StatusRequestTimeout
	case ErrorTypeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorTypeServerError:
		return http.StatusInternalServerError
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeSessionExpired:
		return http.StatusTemporaryRedirect
	default:
		return http.StatusInternalServerError
	}
}
