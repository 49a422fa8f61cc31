package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/proxy/types"
	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// Recovery converts handler panics into a 500 error envelope. The panic
// and its stack are logged; nothing internal reaches the client.
func Recovery(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	panicLogger := logger.Component("recovery")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					panicLogger.ErrorContext(r.Context(), "panic in handler",
						"panic", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)

					// Best effort: the handler may already have
					// written; a duplicate WriteHeader only logs.
					_ = proxy.WriteErrorResponse(w, types.NewServerError("an internal error occurred"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
