package proxy

import (
	"context"
	"errors"
	"net/http"

	"github.com/xhd193694/ninja/pkg/proxy/types"
	"github.com/xhd193694/ninja/pkg/upstream"
)

// HandleError converts internal failures into the error envelope at the
// response boundary. Upstream transport failures become Bad Gateway,
// deadline failures become Request Timeout, rejected identity exchanges
// keep the upstream's verdict, and anything unrecognized becomes an
// internal error with no detail leaked to the client.
func HandleError(err error) *types.ErrorResponse {
	// Checked before the transport errors that wrap it: an oversized
	// body fails mid-forward and surfaces from inside the upstream call.
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewInvalidRequestError("request body exceeds the maximum size", "", types.CodeRequestTooLarge)
	}

	var connErr *upstream.ConnectError
	if errors.As(err, &connErr) {
		return types.NewBadGatewayError("upstream unreachable")
	}

	var timeoutErr *upstream.TimeoutError
	if errors.As(err, &timeoutErr) {
		return types.NewTimeoutError("upstream request timed out")
	}

	var exchErr *upstream.ExchangeError
	if errors.As(err, &exchErr) {
		return handleExchangeError(exchErr)
	}

	var parseErr *upstream.ParseError
	if errors.As(err, &parseErr) {
		return types.NewBadGatewayError("malformed upstream response")
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewTimeoutError("request timed out")
	}

	return types.NewServerError("an internal error occurred")
}

// handleExchangeError maps an upstream-rejected identity exchange.
// Credential rejections stay credential rejections; everything else the
// upstream refused is the client's bad request, per the login/refresh/
// revoke contract.
func handleExchangeError(err *upstream.ExchangeError) *types.ErrorResponse {
	switch {
	case err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden:
		return types.NewAuthenticationError("upstream rejected the credential")
	case err.StatusCode == http.StatusTooManyRequests:
		return types.NewRateLimitError("upstream rate limit exceeded")
	case err.StatusCode >= 500:
		return types.NewBadGatewayError("upstream identity service failed")
	default:
		return types.NewInvalidRequestError("upstream rejected the exchange", "", types.CodeUpstreamError)
	}
}
