package middleware

import (
	"errors"
	"net/http"

	"github.com/xhd193694/ninja/pkg/auth"
	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/proxy/types"
	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// SessionAuth guards the protected proxy routes. Callers authenticate
// one of two ways:
//
//   - A bearer access token, forwarded upstream as-is. The upstream is
//     the authority on its validity; the gateway only requires that one
//     is present.
//   - The gateway session cookie. The session's token is promoted into
//     the Authorization header for the upstream call, and near-expiry
//     sessions are renewed in-line: the refreshed cookie rides out on
//     this same response.
//
// A session past expiry that cannot be refreshed answers 307 so browser
// clients land back on the login flow; a request with no credential at
// all answers 401.
func SessionAuth(manager *auth.Manager, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	authLogger := logger.Component("session")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.BearerToken(r); ok {
				next.ServeHTTP(w, r)
				return
			}

			session, err := auth.SessionFromRequest(r)
			if err != nil {
				if errors.Is(err, auth.ErrMissingCredential) {
					_ = proxy.WriteErrorResponse(w, types.NewAuthenticationError("missing credential"))
					return
				}
				// Undecodable cookie: clear it so the client does not
				// keep replaying garbage.
				http.SetCookie(w, auth.ExpiredSessionCookie())
				_ = proxy.WriteErrorResponse(w, types.NewAuthenticationError("invalid session cookie"))
				return
			}

			ctx := r.Context()
			renewed, changed, err := manager.RenewIfNeeded(ctx, session)
			if err != nil {
				authLogger.InfoContext(ctx, "session expired mid-use",
					"user", session.UserID,
				)
				http.SetCookie(w, auth.ExpiredSessionCookie())
				_ = proxy.WriteErrorResponse(w, types.NewSessionExpiredError("session expired, re-authenticate"))
				return
			}
			if changed {
				if cookie, err := renewed.Cookie(); err == nil {
					http.SetCookie(w, cookie)
				} else {
					authLogger.WarnContext(ctx, "failed to encode renewed session", "error", err)
				}
			}

			r.Header.Set("Authorization", "Bearer "+renewed.AccessToken)
			if renewed.UserID != "" {
				ctx = logging.WithUser(ctx, renewed.UserID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
