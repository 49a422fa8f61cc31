package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xhd193694/ninja/pkg/auth"
	"github.com/xhd193694/ninja/pkg/config"
	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/upstream"
)

// stubIdentity fakes the upstream identity provider.
type stubIdentity struct {
	loginErr   error
	refreshErr error
	revokeErr  error

	logins    int
	refreshes int
	revokes   int

	expires time.Time
}

func (s *stubIdentity) Login(ctx context.Context, account auth.Account) (*auth.AccessToken, error) {
	s.logins++
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &auth.AccessToken{
		Kind:         auth.TokenKindSession,
		Value:        "token-" + account.Username,
		Expires:      s.expires,
		RefreshToken: "refresh-" + account.Username,
	}, nil
}

func (s *stubIdentity) Refresh(ctx context.Context, refreshToken string) (*auth.AccessToken, error) {
	s.refreshes++
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return &auth.AccessToken{
		Kind:         auth.TokenKindSession,
		Value:        "refreshed-token",
		Expires:      s.expires,
		RefreshToken: refreshToken,
	}, nil
}

func (s *stubIdentity) Revoke(ctx context.Context, refreshToken string) error {
	s.revokes++
	return s.revokeErr
}

func (s *stubIdentity) SessionFromCookie(ctx context.Context, cookieValue string) (*auth.AccessToken, error) {
	return &auth.AccessToken{
		Kind:    auth.TokenKindSession,
		Value:   "cookie-token",
		Expires: s.expires,
	}, nil
}

func testServer(t *testing.T, identity *stubIdentity, keyring *auth.Keyring) *Server {
	t.Helper()

	if identity.expires.IsZero() {
		identity.expires = time.Now().Add(24 * time.Hour)
	}

	client, err := upstream.NewClient(upstream.Config{
		PlatformBaseURL: "http://platform.invalid",
		WebBaseURL:      "http://web.invalid",
	}, nil)
	if err != nil {
		t.Fatalf("upstream.NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	dispatcher, err := proxy.NewDispatcher(client, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	manager, err := auth.NewManager(identity, nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := config.NewDefaultConfig()
	srv, err := New(cfg, Dependencies{
		Dispatcher: dispatcher,
		Auth:       manager,
		Keyring:    keyring,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLoginReturnsOAuthGrant(t *testing.T) {
	identity := &stubIdentity{}
	srv := testServer(t, identity, nil)

	rec := postJSON(t, srv.Handler(), "/auth/token",
		`{"username":"alice@example.com","password":"secret"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var grant oauthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &grant); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if grant.AccessToken != "token-alice@example.com" {
		t.Errorf("access_token = %q", grant.AccessToken)
	}
	if grant.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", grant.TokenType)
	}
	if grant.RefreshToken != "refresh-alice@example.com" {
		t.Errorf("refresh_token = %q", grant.RefreshToken)
	}
	if grant.ExpiresIn <= 0 {
		t.Errorf("expires_in = %d, want positive", grant.ExpiresIn)
	}
	if identity.logins != 1 {
		t.Errorf("logins = %d, want 1", identity.logins)
	}
}

func TestLoginSessionTypeSetsCookie(t *testing.T) {
	srv := testServer(t, &stubIdentity{}, nil)

	rec := postJSON(t, srv.Handler(), "/auth/token",
		`{"username":"alice@example.com","password":"secret","type":"session"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("no session cookie issued")
	}
	if sessionCookie.Path != "/" || !sessionCookie.Secure {
		t.Errorf("cookie attributes = path %q secure %v", sessionCookie.Path, sessionCookie.Secure)
	}
	session, err := auth.DecodeSession(sessionCookie.Value)
	if err != nil {
		t.Fatalf("issued cookie does not decode: %v", err)
	}
	if session.AccessToken != "token-alice@example.com" {
		t.Errorf("session token = %q", session.AccessToken)
	}
}

func TestLoginRejectsMissingCredentials(t *testing.T) {
	identity := &stubIdentity{}
	srv := testServer(t, identity, nil)

	rec := postJSON(t, srv.Handler(), "/auth/token", `{"username":"alice@example.com"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if identity.logins != 0 {
		t.Errorf("logins = %d, want 0", identity.logins)
	}
}

func TestLoginKeyGate(t *testing.T) {
	hash, err := auth.HashKey("letmein")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys.yaml")
	content := fmt.Sprintf("keys:\n  - id: ops\n    hash: %q\n", hash)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	keyring, err := auth.LoadKeyring(path, nil)
	if err != nil {
		t.Fatalf("LoadKeyring() error = %v", err)
	}

	identity := &stubIdentity{}
	srv := testServer(t, identity, keyring)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/auth/token",
		`{"username":"a@b.c","password":"pw","auth_key":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", rec.Code)
	}
	if identity.logins != 0 {
		t.Errorf("wrong key reached the identity provider")
	}

	rec = postJSON(t, handler, "/auth/token",
		`{"username":"a@b.c","password":"pw","auth_key":"letmein"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("right key: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshRequiresToken(t *testing.T) {
	srv := testServer(t, &stubIdentity{}, nil)

	rec := postJSON(t, srv.Handler(), "/auth/refresh_token", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRefreshReturnsNewGrant(t *testing.T) {
	identity := &stubIdentity{}
	srv := testServer(t, identity, nil)

	rec := postJSON(t, srv.Handler(), "/auth/refresh_token", `{"refresh_token":"rt-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var grant oauthResponse
	json.Unmarshal(rec.Body.Bytes(), &grant)
	if grant.AccessToken != "refreshed-token" {
		t.Errorf("access_token = %q", grant.AccessToken)
	}
	if identity.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", identity.refreshes)
	}
}

func TestRevokeRequiresBearer(t *testing.T) {
	identity := &stubIdentity{}
	srv := testServer(t, identity, nil)

	rec := postJSON(t, srv.Handler(), "/auth/revoke_token", `{"refresh_token":"rt-1"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if identity.revokes != 0 {
		t.Errorf("revokes = %d, want 0", identity.revokes)
	}
}

func TestRevokeClearsSession(t *testing.T) {
	identity := &stubIdentity{}
	srv := testServer(t, identity, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/revoke_token",
		strings.NewReader(`{"refresh_token":"rt-1"}`))
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if identity.revokes != 1 {
		t.Errorf("revokes = %d, want 1", identity.revokes)
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("revoke did not clear the session cookie")
	}
}

func TestSessionEndpointWithoutCookie(t *testing.T) {
	srv := testServer(t, &stubIdentity{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionEndpointReportsSession(t *testing.T) {
	identity := &stubIdentity{expires: time.Now().Add(24 * time.Hour)}
	srv := testServer(t, identity, nil)

	session := &auth.Session{
		AccessToken: "live-token",
		UserID:      "user-1",
		Email:       "alice@example.com",
		Expires:     identity.expires.Unix(),
	}
	cookie, err := session.Cookie()
	if err != nil {
		t.Fatalf("Cookie() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.User.Email != "alice@example.com" {
		t.Errorf("email = %q", resp.User.Email)
	}
	if resp.AccessToken != "live-token" {
		t.Errorf("accessToken = %q", resp.AccessToken)
	}
	// Far from expiry: no renewal traffic.
	if identity.refreshes != 0 {
		t.Errorf("refreshes = %d, want 0", identity.refreshes)
	}
}
