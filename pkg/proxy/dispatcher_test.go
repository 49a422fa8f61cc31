package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xhd193694/ninja/pkg/auth"
	"github.com/xhd193694/ninja/pkg/proxy/types"
	"github.com/xhd193694/ninja/pkg/telemetry/logging"
	"github.com/xhd193694/ninja/pkg/upstream"
)

func testDispatcher(t *testing.T, platformURL, webURL string, cookies CookieSource) *Dispatcher {
	t.Helper()

	client, err := upstream.NewClient(upstream.Config{
		PlatformBaseURL: platformURL,
		WebBaseURL:      webURL,
	}, logging.Nop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	dispatcher, err := NewDispatcher(client, cookies, logging.Nop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return dispatcher
}

func decodeErrorResponse(t *testing.T, body io.Reader) *types.ErrorResponse {
	t.Helper()
	var errResp types.ErrorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return &errResp
}

// ============================================================================
// Route classification
// ============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		path      string
		wantClass RouteClass
		wantOK    bool
	}{
		{"/dashboard/user/api_keys", RouteOfficialDashboard, true},
		{"/v1/chat/completions", RouteOfficialV1, true},
		{"/backend-api/conversation", RouteUnofficialBackend, true},
		{"/public-api/models", RouteUnofficialPublic, true},
		{"/auth/token", "", false},
		{"/healthz", "", false},
		{"/v2/anything", "", false},
		{"/", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			class, ok := Classify(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Classify(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if class != tt.wantClass {
				t.Errorf("Classify(%q) = %q, want %q", tt.path, class, tt.wantClass)
			}
		})
	}
}

func TestRouteClassProtection(t *testing.T) {
	tests := []struct {
		class         RouteClass
		wantOfficial  bool
		wantProtected bool
	}{
		{RouteOfficialDashboard, true, true},
		{RouteOfficialV1, true, true},
		{RouteUnofficialBackend, false, true},
		{RouteUnofficialPublic, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			if got := tt.class.Official(); got != tt.wantOfficial {
				t.Errorf("Official() = %v, want %v", got, tt.wantOfficial)
			}
			if got := tt.class.Protected(); got != tt.wantProtected {
				t.Errorf("Protected() = %v, want %v", got, tt.wantProtected)
			}
		})
	}
}

// ============================================================================
// Request forwarding
// ============================================================================

func TestDispatchPassthrough(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"resp-1"}`)
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions?stream=false", strings.NewReader(`{"model":"gpt-4"}`))
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteOfficialV1).ServeHTTP(rec, req)

	if gotMethod != http.MethodPost {
		t.Errorf("upstream method = %q, want POST", gotMethod)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("upstream path = %q, want /v1/chat/completions", gotPath)
	}
	if gotQuery != "stream=false" {
		t.Errorf("upstream query = %q, want stream=false", gotQuery)
	}
	if gotBody != `{"model":"gpt-4"}` {
		t.Errorf("upstream body = %q", gotBody)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Error("upstream response header not preserved")
	}
	if rec.Body.String() != `{"id":"resp-1"}` {
		t.Errorf("body = %q, want upstream bytes unmodified", rec.Body.String())
	}
}

func TestDispatchSelectsUpstreamByClass(t *testing.T) {
	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "platform")
	}))
	defer platform.Close()
	web := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "web")
	}))
	defer web.Close()

	dispatcher := testDispatcher(t, platform.URL, web.URL, nil)

	tests := []struct {
		class RouteClass
		path  string
		want  string
	}{
		{RouteOfficialDashboard, "/dashboard/billing/usage", "platform"},
		{RouteOfficialV1, "/v1/models", "platform"},
		{RouteUnofficialBackend, "/backend-api/models", "web"},
		{RouteUnofficialPublic, "/public-api/models", "web"},
	}

	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			dispatcher.Handler(tt.class).ServeHTTP(rec, req)

			if rec.Body.String() != tt.want {
				t.Errorf("routed to %q upstream, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}

// ============================================================================
// Header hygiene
// ============================================================================

func TestDispatchStripsHopByHopHeaders(t *testing.T) {
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/backend-api/models", nil)
	req.Header.Set("Connection", "X-Droppable")
	req.Header.Set("X-Droppable", "should not survive")
	req.Header.Set("Keep-Alive", "timeout=5")
	req.Header.Set("Proxy-Authorization", "Basic abc")
	req.Header.Set("X-Kept", "survives")
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	for _, name := range []string{"X-Droppable", "Keep-Alive", "Proxy-Authorization"} {
		if gotHeader.Get(name) != "" {
			t.Errorf("header %s forwarded upstream, want stripped", name)
		}
	}
	if gotHeader.Get("X-Kept") != "survives" {
		t.Error("end-to-end header stripped, want forwarded")
	}
}

func TestDispatchStripsClientAddressHeaders(t *testing.T) {
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("X-Real-Ip", "203.0.113.9")
	req.Header.Set("True-Client-Ip", "203.0.113.9")
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteOfficialV1).ServeHTTP(rec, req)

	for _, name := range []string{"X-Forwarded-For", "X-Real-Ip", "True-Client-Ip"} {
		if gotHeader.Get(name) != "" {
			t.Errorf("header %s forwarded upstream, want stripped", name)
		}
	}
}

func TestDispatchFiltersSessionCookie(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/backend-api/models", nil)
	req.Header.Set("Cookie", auth.SessionCookieName+"=opaque-session; other=1")
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	if strings.Contains(gotCookie, auth.SessionCookieName) {
		t.Errorf("session cookie forwarded upstream: %q", gotCookie)
	}
	if !strings.Contains(gotCookie, "other=1") {
		t.Errorf("unrelated cookie dropped: %q", gotCookie)
	}
}

func TestDispatchAttachesCapturedCookie(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, StaticSource{Value: "captured-123"})

	// Unofficial surfaces get the captured cookie.
	req := httptest.NewRequest(http.MethodGet, "/backend-api/models", nil)
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	if !strings.Contains(gotCookie, "_puid=captured-123") {
		t.Errorf("captured cookie not attached: %q", gotCookie)
	}

	// Official surfaces never get it.
	req = httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec = httptest.NewRecorder()
	dispatcher.Handler(RouteOfficialV1).ServeHTTP(rec, req)

	if strings.Contains(gotCookie, "_puid") {
		t.Errorf("captured cookie attached to official route: %q", gotCookie)
	}
}

func TestDispatchReplacesStaleCapturedCookie(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, StaticSource{Value: "fresh"})

	req := httptest.NewRequest(http.MethodGet, "/backend-api/models", nil)
	req.Header.Set("Cookie", "_puid=stale")
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	if strings.Contains(gotCookie, "stale") {
		t.Errorf("stale client copy forwarded: %q", gotCookie)
	}
	if !strings.Contains(gotCookie, "_puid=fresh") {
		t.Errorf("live capture not attached: %q", gotCookie)
	}
}

func TestDispatchFiltersResponseCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "_puid=refreshed; Path=/")
		w.Header().Add("Set-Cookie", "__cf_bm=edge-token; Path=/")
		w.Header().Add("Set-Cookie", "_cfuvid=tracking; Path=/")
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/backend-api/models", nil)
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	cookies := rec.Header().Values("Set-Cookie")
	if len(cookies) != 1 {
		t.Fatalf("got %d Set-Cookie headers, want 1: %q", len(cookies), cookies)
	}
	if !strings.HasPrefix(cookies[0], "_puid=") {
		t.Errorf("surviving cookie = %q, want _puid", cookies[0])
	}
}

func TestDispatchRewritesUpstreamLocation(t *testing.T) {
	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/backend-api/self":
			w.Header().Set("Location", serverURL+"/backend-api/conversation?id=1")
		case "/backend-api/foreign":
			w.Header().Set("Location", "https://elsewhere.example/path")
		}
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()
	serverURL = server.URL

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/backend-api/self", nil)
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	if got := rec.Header().Get("Location"); got != "/backend-api/conversation?id=1" {
		t.Errorf("Location = %q, want relative /backend-api/conversation?id=1", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/backend-api/foreign", nil)
	rec = httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	if got := rec.Header().Get("Location"); got != "https://elsewhere.example/path" {
		t.Errorf("foreign Location rewritten to %q, want untouched", got)
	}
}

// ============================================================================
// Failure mapping
// ============================================================================

func TestDispatchUnreachableUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteOfficialV1).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	errResp := decodeErrorResponse(t, rec.Body)
	if errResp.Error.Type != types.ErrorTypeBadGateway {
		t.Errorf("error type = %q, want %q", errResp.Error.Type, types.ErrorTypeBadGateway)
	}
}

func TestDispatchUpstreamTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteOfficialV1).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestTimeout {
		t.Fatalf("status = %d, want 408", rec.Code)
	}
	errResp := decodeErrorResponse(t, rec.Body)
	if errResp.Error.Type != types.ErrorTypeTimeout {
		t.Errorf("error type = %q, want %q", errResp.Error.Type, types.ErrorTypeTimeout)
	}
}

func TestDispatchUpstreamErrorStatusPassesThrough(t *testing.T) {
	// Upstream application errors are the upstream's verdicts: the
	// dispatcher relays them untouched rather than re-wrapping.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"detail":"rate limited upstream"}`)
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/backend-api/models", nil)
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want upstream 429 preserved", rec.Code)
	}
	if rec.Body.String() != `{"detail":"rate limited upstream"}` {
		t.Errorf("body = %q, want upstream bytes", rec.Body.String())
	}
}

// ============================================================================
// Streaming conversion
// ============================================================================

func sseEvent(payload string) string {
	return "data: " + payload + "\n\n"
}

func TestDispatchConvertsEventStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		io.WriteString(w, sseEvent(`{"message":{"id":"msg-1","content":{"parts":["Hello"]},"metadata":{"model_slug":"gpt-4"}}}`))
		io.WriteString(w, sseEvent(`{"message":{"id":"msg-1","content":{"parts":["Hello world"]},"end_turn":true,"metadata":{"model_slug":"gpt-4"}}}`))
		io.WriteString(w, sseEvent("[DONE]"))
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodPost, "/backend-api/conversation", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}

	var chunks []types.StreamChunk
	sawDone := false
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		payload, found := strings.CutPrefix(line, "data: ")
		if !found {
			continue
		}
		if payload == "[DONE]" {
			sawDone = true
			continue
		}
		var chunk types.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			t.Fatalf("failed to decode chunk %q: %v", payload, err)
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3 (two deltas and a stop)", len(chunks))
	}
	if chunks[0].Choices[0].Delta.Content != "Hello" {
		t.Errorf("first delta = %q, want Hello", chunks[0].Choices[0].Delta.Content)
	}
	if chunks[1].Choices[0].Delta.Content != " world" {
		t.Errorf("second delta = %q, want only the new suffix", chunks[1].Choices[0].Delta.Content)
	}
	if chunks[2].Choices[0].FinishReason == nil || *chunks[2].Choices[0].FinishReason != "stop" {
		t.Error("final chunk missing finish_reason stop")
	}
	for i, chunk := range chunks {
		if chunk.ID != "msg-1" {
			t.Errorf("chunk %d id = %q, want upstream message id", i, chunk.ID)
		}
		if chunk.Model != "gpt-4" {
			t.Errorf("chunk %d model = %q, want gpt-4", i, chunk.Model)
		}
		if chunk.Object != "chat.completion.chunk" {
			t.Errorf("chunk %d object = %q", i, chunk.Object)
		}
	}
	if !sawDone {
		t.Error("stream not terminated with [DONE]")
	}
}

func TestDispatchRelaysNonSnapshotEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseEvent(`{"ping":true}`))
		io.WriteString(w, sseEvent(`{"message":{"content":{"parts":["Hi"]}}}`))
		io.WriteString(w, sseEvent("[DONE]"))
	}))
	defer server.Close()

	dispatcher := testDispatcher(t, server.URL, server.URL, nil)

	req := httptest.NewRequest(http.MethodPost, "/backend-api/conversation", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	dispatcher.Handler(RouteUnofficialBackend).ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `data: {"ping":true}`) {
		t.Errorf("non-snapshot event not relayed unmodified:\n%s", body)
	}
	if !strings.Contains(body, `"content":"Hi"`) {
		t.Errorf("snapshot event not converted:\n%s", body)
	}
}

// ============================================================================
// Construction
// ============================================================================

func TestNewDispatcherRequiresClient(t *testing.T) {
	if _, err := NewDispatcher(nil, nil, nil); err == nil {
		t.Fatal("NewDispatcher(nil client) error = nil, want error")
	}
}
