package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with a unique id, honoring one the
// client already supplied. The id lands in the request context for log
// correlation and on the response so clients can quote it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = newRequestID()
		}

		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// newRequestID returns 16 random bytes as 32 hex characters.
func newRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in far worse trouble
		// than a missing correlation id.
		return "unidentified"
	}
	return hex.EncodeToString(b)
}
