package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/proxy/types"
)

// Timeout bounds each request end to end with a context deadline.
// Handlers observe the deadline through the request context: the
// upstream client aborts its exchange, the concurrency gate abandons
// its queue wait, and both surface a Request Timeout. When the deadline
// fires before any handler wrote a byte, the middleware writes the 408
// envelope itself.
//
// Streaming responses share the same deadline; a conversation stream
// that outlives it is cut off, matching the per-process request budget.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if ctx.Err() == context.DeadlineExceeded && !rw.written {
				_ = proxy.WriteErrorResponse(rw, types.NewTimeoutError("request timed out"))
			}
		})
	}
}
