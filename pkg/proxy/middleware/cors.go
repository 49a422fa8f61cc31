package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the cross-origin layer.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted at all.
	Enabled bool

	// AllowedOrigins lists permitted origins. ["*"] mirrors whatever
	// origin the request carries, which is required when credentials
	// are allowed: the wildcard form is rejected by browsers then.
	AllowedOrigins []string

	// AllowedMethods lists methods permitted in preflight responses.
	AllowedMethods []string

	// AllowedHeaders lists request headers permitted in preflight
	// responses.
	AllowedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int

	// AllowCredentials permits cookies and Authorization headers on
	// cross-origin requests. The browser session flow depends on it.
	AllowCredentials bool
}

// CORS emits cross-origin headers and short-circuits preflight
// requests. Origins outside the allowlist get no CORS headers and the
// browser enforces the rest.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := resolveOrigin(cfg.AllowedOrigins, origin)
			if allowed == "" {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Add("Vary", "Origin")
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
				h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolveOrigin returns the value for Access-Control-Allow-Origin, or
// empty when the origin is not allowed. The wildcard entry mirrors the
// request origin instead of emitting a literal "*".
func resolveOrigin(allowedOrigins []string, origin string) string {
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return origin
		}
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}
