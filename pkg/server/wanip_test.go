package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveWANIPFirstEndpoint(t *testing.T) {
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("203.0.113.7\n"))
	}))
	defer echo.Close()

	ip, err := resolveWANIP(context.Background(), echo.Client(), []string{echo.URL})
	if err != nil {
		t.Fatalf("resolveWANIP() error = %v", err)
	}
	if ip != "203.0.113.7" {
		t.Errorf("ip = %q, want 203.0.113.7", ip)
	}
}

func TestResolveWANIPFallsBack(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("198.51.100.4"))
	}))
	defer good.Close()

	ip, err := resolveWANIP(context.Background(), http.DefaultClient, []string{bad.URL, good.URL})
	if err != nil {
		t.Fatalf("resolveWANIP() error = %v", err)
	}
	if ip != "198.51.100.4" {
		t.Errorf("ip = %q, want 198.51.100.4", ip)
	}
}

func TestResolveWANIPRejectsGarbage(t *testing.T) {
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an address</html>"))
	}))
	defer echo.Close()

	if _, err := resolveWANIP(context.Background(), http.DefaultClient, []string{echo.URL}); err == nil {
		t.Error("expected an error for a non-address body")
	}
}
