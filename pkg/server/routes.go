package server

import (
	"net/http"

	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/proxy/middleware"
)

// Handler builds the full route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Proxied surfaces. Protected classes carry session authentication
	// and token-bucket admission; the public class is open.
	s.handleProxied(mux, "/dashboard/", proxy.RouteOfficialDashboard)
	s.handleProxied(mux, "/v1/", proxy.RouteOfficialV1)
	s.handleProxied(mux, "/backend-api/", proxy.RouteUnofficialBackend)
	s.handleProxied(mux, "/public-api/", proxy.RouteUnofficialPublic)

	// Authentication endpoints served by the gateway itself.
	mux.HandleFunc("POST /auth/token", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh_token", s.handleRefresh)
	mux.HandleFunc("POST /auth/revoke_token", s.handleRevoke)
	mux.HandleFunc("GET /api/auth/session", s.handleSession)

	// Operational surface.
	if s.deps.Health != nil {
		mux.HandleFunc("GET /healthz", s.deps.Health.LivenessHandler())
		mux.HandleFunc("GET /readyz", s.deps.Health.ReadinessHandler())
	}
	if s.deps.Metrics != nil && s.cfg.Telemetry.Metrics.Enabled {
		path := s.cfg.Telemetry.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.deps.Metrics.Handler())
	}

	return s.chain(mux)
}

// chain wraps the route table in the global middleware stack, applied
// innermost to outermost.
func (s *Server) chain(h http.Handler) http.Handler {
	if s.cfg.Server.MaxBodyBytes > 0 {
		h = middleware.BodyLimit(s.cfg.Server.MaxBodyBytes)(h)
	}
	if s.gate != nil {
		h = middleware.Concurrency(s.gate)(h)
	}
	if s.cfg.Server.RequestTimeout > 0 {
		h = middleware.Timeout(s.cfg.Server.RequestTimeout)(h)
	}
	if s.cfg.Server.CORS.Enabled {
		h = middleware.CORS(middleware.CORSConfig{
			Enabled:          true,
			AllowedOrigins:   s.cfg.Server.CORS.AllowedOrigins,
			AllowedMethods:   s.cfg.Server.CORS.AllowedMethods,
			AllowedHeaders:   s.cfg.Server.CORS.AllowedHeaders,
			MaxAge:           s.cfg.Server.CORS.MaxAge,
			AllowCredentials: s.cfg.Server.CORS.AllowCredentials,
		})(h)
	}
	h = middleware.AccessLog(s.deps.Logger)(h)
	h = middleware.RequestID(h)
	h = middleware.Recovery(s.deps.Logger)(h)
	return h
}

func (s *Server) handleProxied(mux *http.ServeMux, prefix string, class proxy.RouteClass) {
	h := s.deps.Dispatcher.Handler(class)
	if class.Protected() {
		if s.deps.Limiter != nil {
			h = middleware.Admission(s.deps.Limiter)(h)
		}
		if s.deps.Auth != nil {
			h = middleware.SessionAuth(s.deps.Auth, s.deps.Logger)(h)
		}
	}
	mux.Handle(prefix, h)
}
