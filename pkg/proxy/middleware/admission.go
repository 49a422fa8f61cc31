package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"

	"github.com/xhd193694/ninja/pkg/auth"
	"github.com/xhd193694/ninja/pkg/limits"
	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/proxy/types"
	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// Admission runs the token-bucket check in front of protected routes.
// The bucket key is derived from the caller's credential when one is
// present, falling back to the client address, so authenticated clients
// are metered per identity and anonymous ones per host.
//
// Backend failures deny the request with a server error rather than a
// rate-limit denial: a broken backend must never turn into an open
// gate.
func Admission(manager *limits.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if manager == nil || !manager.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := BucketKey(r)
			ctx := logging.WithBucketKey(r.Context(), key)

			result, err := manager.Check(ctx, key)
			if err != nil {
				_ = proxy.WriteErrorResponse(w, types.NewServerError("admission check failed"))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

			if !result.Allowed {
				if result.RetryAfter > 0 {
					seconds := int(result.RetryAfter.Seconds())
					if seconds < 1 {
						seconds = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(seconds))
				}
				_ = proxy.WriteErrorResponse(w, types.NewRateLimitError("rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BucketKey derives the stable admission identity for a request: a
// digest of the bearer credential when one is present, else the client
// IP. Hashing keeps raw tokens out of the limiter backend and off its
// disk.
func BucketKey(r *http.Request) string {
	if token, ok := auth.BearerToken(r); ok {
		sum := sha256.Sum256([]byte(token))
		return "tok:" + hex.EncodeToString(sum[:16])
	}
	if session, err := auth.SessionFromRequest(r); err == nil {
		sum := sha256.Sum256([]byte(session.AccessToken))
		return "tok:" + hex.EncodeToString(sum[:16])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
