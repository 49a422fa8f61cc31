package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/xhd193694/ninja/pkg/limits/ratelimit"
	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/proxy/types"
)

// Concurrency bounds simultaneously in-flight requests with the shared
// gate. Excess requests queue until a slot frees; a request whose
// context expires while queued fails with the same Request Timeout a
// slow upstream would produce. A nil gate admits everything.
func Concurrency(gate *ratelimit.ConcurrencyGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if gate == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate.Acquire(r.Context()); err != nil {
				if errors.Is(err, context.Canceled) {
					// Client gave up while queued; nobody is reading.
					return
				}
				_ = proxy.WriteErrorResponse(w, types.NewTimeoutError("request timed out waiting for capacity"))
				return
			}
			defer gate.Release()

			next.ServeHTTP(w, r)
		})
	}
}
