// Package upstreamtest provides a configurable mock of the proxied
// upstream for tests: JSON endpoints, snapshot-style event streams,
// and identity exchange responses.
package upstreamtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Response configures one mocked endpoint.
type Response struct {
	StatusCode int
	Body       interface{}
	Delay      time.Duration
	Headers    map[string]string

	// Snapshots, when set, turns the endpoint into an event stream of
	// successive full-text snapshots terminated by [DONE].
	Snapshots []string
}

// Server is a mock upstream. Register responses per path, point the
// gateway's upstream client at URL(), and inspect what arrived.
type Server struct {
	server    *httptest.Server
	mu        sync.Mutex
	responses map[string]Response
	requests  []*http.Request
}

// New starts a mock upstream. Callers own Close.
func New() *Server {
	s := &Server{responses: make(map[string]Response)}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

// URL returns the mock upstream's base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the mock down.
func (s *Server) Close() {
	s.server.Close()
}

// Handle registers the response served at path.
func (s *Server) Handle(path string, response Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = response
}

// Requests returns a copy of every request received so far. Bodies are
// not retained.
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*http.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns the number of requests received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(r.Context()))
	response, ok := s.responses[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		time.Sleep(response.Delay)
	}
	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.Snapshots) > 0 {
		s.streamSnapshots(w, response)
		return
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		w.Write([]byte(v))
	case []byte:
		w.Write(v)
	default:
		json.NewEncoder(w).Encode(v)
	}
}

// streamSnapshots emits the registered snapshots as conversation
// events: each data payload carries the full text so far, the way the
// upstream reports streaming messages.
func (s *Server) streamSnapshots(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for i, snapshot := range response.Snapshots {
		fmt.Fprintf(w, "data: %s\n\n", SnapshotEvent(snapshot, i == len(response.Snapshots)-1))
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// SnapshotEvent builds one conversation event JSON carrying the given
// full-text snapshot.
func SnapshotEvent(text string, endTurn bool) string {
	event := map[string]interface{}{
		"message": map[string]interface{}{
			"id": "msg-1",
			"content": map[string]interface{}{
				"content_type": "text",
				"parts":        []string{text},
			},
			"metadata": map[string]interface{}{
				"model_slug": "gpt-4",
			},
			"end_turn": endTurn,
		},
		"conversation_id": "conv-1",
	}
	raw, _ := json.Marshal(event)
	return string(raw)
}

// OAuthGrant builds an identity provider token response.
func OAuthGrant(accessToken, refreshToken string, expiresIn int) map[string]interface{} {
	return map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    expiresIn,
		"token_type":    "Bearer",
	}
}
