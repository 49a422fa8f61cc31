package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// Client is the shared connection-pooled HTTP client behind every upstream
// call: proxied traffic to both provider surfaces and the identity
// exchanges performed by the auth layer.
//
// The client carries no fixed request timeout. Streaming responses can
// stay open far longer than any sane client timeout, so deadlines come
// from each request's context instead.
//
// Redirects are never followed: proxied 3xx responses belong to the
// caller, and the identity endpoints answer terminally.
type Client struct {
	config   Config
	platform *url.URL
	web      *url.URL
	http     *http.Client
	health   healthState
	logger   *logging.Logger
}

// Config configures the upstream client.
type Config struct {
	// PlatformBaseURL is the official API surface. Required.
	PlatformBaseURL string

	// WebBaseURL is the unofficial (web) API surface. Required.
	WebBaseURL string

	// ConnectTimeout bounds TCP connection establishment.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// Connection pool settings.
	MaxIdleConns        int           // default 100
	MaxIdleConnsPerHost int           // default 32
	IdleConnTimeout     time.Duration // default 90 seconds

	// MaxRetries is the retry count for identity exchanges. Proxied
	// traffic is never retried. Default: 2.
	MaxRetries int

	// UserAgent is sent on identity exchanges and on proxied requests
	// that arrive without one.
	UserAgent string
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 100
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 32
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}

// NewClient creates an upstream client, validating both base URLs.
func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	cfg.applyDefaults()

	platform, err := parseBaseURL(cfg.PlatformBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid platform base URL: %w", err)
	}
	web, err := parseBaseURL(cfg.WebBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid web base URL: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		config:   cfg,
		platform: platform,
		web:      web,
		http: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		health: newHealthState(),
		logger: logger.Component("upstream"),
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}

// PlatformURL returns the parsed official API base URL.
func (c *Client) PlatformURL() *url.URL { return c.platform }

// WebURL returns the parsed unofficial API base URL.
func (c *Client) WebURL() *url.URL { return c.web }

// UserAgent returns the configured user agent string.
func (c *Client) UserAgent() string { return c.config.UserAgent }

// Do sends one fully prepared request and returns the raw response.
// Used by the dispatcher for proxied traffic: no retries (proxied
// requests may be non-idempotent, and their bodies are streamed), no
// response body buffering.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.health.recordFailure(err, c.logger)
		if req.Context().Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{URL: req.URL.Redacted(), Cause: err}
		}
		return nil, &ConnectError{URL: req.URL.Redacted(), Cause: err}
	}
	c.health.recordSuccess()
	return resp, nil
}

// DoJSON performs one identity exchange: marshal reqBody, send, decode
// the 2xx response into respBody. Transport failures and 5xx responses
// retry with exponential backoff up to MaxRetries; 4xx responses are
// terminal and surface as an ExchangeError carrying the upstream status.
func (c *Client) DoJSON(ctx context.Context, method, rawURL string, reqBody, respBody any, headers map[string]string) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.logger.DebugContext(ctx, "retrying identity exchange",
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return &TimeoutError{URL: rawURL, Cause: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		if req.Header.Get("Content-Type") == "" && payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if req.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.health.recordFailure(err, c.logger)
			if ctx.Err() != nil {
				return &TimeoutError{URL: rawURL, Cause: err}
			}
			lastErr = &ConnectError{URL: rawURL, Cause: err}
			c.logger.WarnContext(ctx, "identity exchange failed, will retry",
				"attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.health.recordSuccess()
			defer resp.Body.Close()

			if respBody == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return &ParseError{URL: rawURL, Cause: fmt.Errorf("failed to read response: %w", err)}
			}
			if len(raw) == 0 {
				return nil
			}
			if err := json.Unmarshal(raw, respBody); err != nil {
				return &ParseError{URL: rawURL, Cause: fmt.Errorf("failed to decode response: %w", err)}
			}
			return nil
		}

		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			c.health.recordFailure(fmt.Errorf("status %d", resp.StatusCode), c.logger)
			lastErr = &ExchangeError{URL: rawURL, StatusCode: resp.StatusCode, Message: string(errorBody)}
			c.logger.WarnContext(ctx, "identity exchange returned server error, will retry",
				"status", resp.StatusCode, "attempt", attempt+1)
			continue
		}

		// 4xx: the upstream rejected the exchange; retrying cannot help.
		c.health.recordSuccess()
		return &ExchangeError{URL: rawURL, StatusCode: resp.StatusCode, Message: string(errorBody)}
	}

	return lastErr
}

// Healthy reports whether the upstream connection is considered healthy.
func (c *Client) Healthy() bool {
	return c.health.healthy()
}

// Health returns a snapshot of upstream connection health.
func (c *Client) Health() Health {
	return c.health.snapshot()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
