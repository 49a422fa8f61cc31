package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xhd193694/ninja/pkg/auth"
	"github.com/xhd193694/ninja/pkg/config"
	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/proxy/middleware"
	"github.com/xhd193694/ninja/pkg/telemetry/health"
	"github.com/xhd193694/ninja/pkg/telemetry/metrics"
	"github.com/xhd193694/ninja/pkg/upstream"
)

// routedServer builds a server whose web surface points at a live
// synthetic upstream.
func routedServer(t *testing.T, upstreamHandler http.Handler) *Server {
	t.Helper()

	fake := httptest.NewServer(upstreamHandler)
	t.Cleanup(fake.Close)

	client, err := upstream.NewClient(upstream.Config{
		PlatformBaseURL: fake.URL,
		WebBaseURL:      fake.URL,
	}, nil)
	if err != nil {
		t.Fatalf("upstream.NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	dispatcher, err := proxy.NewDispatcher(client, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	manager, err := auth.NewManager(&stubIdentity{expires: time.Now().Add(time.Hour)}, nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	checker := health.New(time.Second)
	collector := metrics.NewCollector(nil)

	cfg := config.NewDefaultConfig()
	srv, err := New(cfg, Dependencies{
		Metrics:    collector,
		Dispatcher: dispatcher,
		Auth:       manager,
		Health:     checker,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func TestRoutesHealthz(t *testing.T) {
	srv := routedServer(t, http.NotFoundHandler())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", rec.Code)
	}
}

func TestRoutesReadyz(t *testing.T) {
	srv := routedServer(t, http.NotFoundHandler())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", rec.Code)
	}
}

func TestRoutesMetrics(t *testing.T) {
	srv := routedServer(t, http.NotFoundHandler())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

func TestRoutesUnknownPath(t *testing.T) {
	srv := routedServer(t, http.NotFoundHandler())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRoutesPublicSurfaceIsOpen(t *testing.T) {
	srv := routedServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public-api/conversation_limit" {
			t.Errorf("upstream path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"limit":null}`))
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public-api/conversation_limit", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "limit") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRoutesProtectedSurfaceRequiresCredential(t *testing.T) {
	upstreamHit := false
	srv := routedServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHit = true
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backend-api/conversations", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if upstreamHit {
		t.Error("unauthenticated request reached the upstream")
	}
}

func TestRoutesBearerPassesProtectedSurface(t *testing.T) {
	var seenAuth string
	srv := routedServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/backend-api/conversations", nil)
	req.Header.Set("Authorization", "Bearer caller-token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if seenAuth != "Bearer caller-token" {
		t.Errorf("upstream Authorization = %q", seenAuth)
	}
}

func TestRoutesRequestIDAssigned(t *testing.T) {
	srv := routedServer(t, http.NotFoundHandler())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("no request ID on the response")
	}
}
