package config

import "time"

// Config is the root configuration structure for the ninja gateway.
// It contains all configuration sections for the HTTP server, upstream
// targets, credential handling, admission control, the pre-auth interception
// proxy, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, body limits, and CORS.
	Server ServerConfig `yaml:"server"`

	// Upstream contains configuration for the two proxied upstream API
	// surfaces (platform and web) and the shared HTTP client.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Auth contains configuration for the credential/session manager,
	// the token store, and the pre-shared login key gate.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit contains configuration for the token-bucket admission layer.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Preauth contains configuration for the TLS-intercepting pre-auth proxy.
	Preauth PreauthConfig `yaml:"preauth"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the gateway's HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "0.0.0.0:7999").
	// Default: "0.0.0.0:7999"
	ListenAddress string `yaml:"listen_address"`

	// TLSCertFile and TLSKeyFile enable TLS termination when both are set.
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Kept long because event-stream responses stay open.
	// Default: 600s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	// before in-flight requests are abandoned.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds each proxied request end to end. Requests that
	// exceed it receive a Request Timeout error.
	// Default: 600s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Concurrency bounds the number of simultaneously in-flight proxied
	// requests. Excess requests queue until a slot frees or RequestTimeout
	// elapses. Zero means unlimited.
	// Default: 65535
	Concurrency int `yaml:"concurrency"`

	// MaxBodyBytes is the largest request body the gateway will accept.
	// Default: 209715200 (200 MiB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// MaxHeaderBytes limits request header parsing.
	// Default: 1048576 (1 MiB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration. The gateway mirrors the request
// origin by default so browser-held sessions keep working across hosts.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists permitted origins. ["*"] mirrors any origin.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists permitted methods for preflight responses.
	// Default: ["GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists permitted request headers.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials permits cookies and Authorization headers in
	// cross-origin requests. Required for the browser session flow.
	// Default: true
	AllowCredentials bool `yaml:"allow_credentials"`
}

// UpstreamConfig contains configuration for the proxied upstream surfaces
// and the pooled HTTP client that reaches them.
type UpstreamConfig struct {
	// PlatformBaseURL is the official platform API origin, serving the
	// /dashboard and /v1 route classes.
	// Default: "https://api.openai.com"
	PlatformBaseURL string `yaml:"platform_base_url"`

	// WebBaseURL is the web application API origin, serving the
	// /backend-api and /public-api route classes.
	// Default: "https://chat.openai.com"
	WebBaseURL string `yaml:"web_base_url"`

	// Timeout bounds a single upstream exchange.
	// Default: 600s
	Timeout time.Duration `yaml:"timeout"`

	// ConnectTimeout bounds dialing an upstream.
	// Default: 60s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// MaxIdleConns and MaxIdleConnsPerHost size the connection pool.
	// Defaults: 100 / 32
	MaxIdleConns        int `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout evicts idle pooled connections.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// MaxRetries bounds retry attempts for transient upstream failures on
	// idempotent auth exchanges. Proxied client traffic is never retried.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// UserAgent is sent upstream when the inbound request carries none.
	UserAgent string `yaml:"user_agent"`
}

// AuthConfig contains configuration for credentials, sessions, and the
// pre-shared login key gate.
type AuthConfig struct {
	// IdentityBaseURL is the identity provider endpoint for login,
	// refresh, and revoke exchanges.
	// Default: "https://auth0.openai.com"
	IdentityBaseURL string `yaml:"identity_base_url"`

	// ClientID identifies this gateway to the identity provider.
	ClientID string `yaml:"client_id"`

	// KeyFile is a YAML file of hashed pre-shared login keys guarding
	// POST /auth/token. Empty disables the gate.
	KeyFile string `yaml:"key_file"`

	// WatchKeyFile reloads KeyFile when it changes on disk.
	// Default: false
	WatchKeyFile bool `yaml:"watch_key_file"`

	// Store selects the token store backend: "memory" or "sqlite".
	// Default: "memory"
	Store string `yaml:"store"`

	// SQLitePath is the token store database path when Store is "sqlite".
	// Default: "data/tokens.db"
	SQLitePath string `yaml:"sqlite_path"`

	// PruneSchedule is a cron expression for pruning expired credentials
	// from the token store. Empty disables scheduled pruning.
	// Default: "0 * * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// RateLimitConfig contains configuration for token-bucket admission control.
type RateLimitConfig struct {
	// Enabled turns admission control on. When false every check admits.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Strategy selects the bucket-state backend: "local" (in-process) or
	// "shared" (cross-process SQLite database). Any other value fails
	// validation at startup.
	// Default: "local"
	Strategy string `yaml:"strategy"`

	// Capacity is the bucket size per client key.
	// Default: 60
	Capacity int64 `yaml:"capacity"`

	// FillRate is the refill rate in tokens per second.
	// Default: 1.0
	FillRate float64 `yaml:"fill_rate"`

	// Expired evicts a key's bucket after this much idle time; the next
	// check sees a full bucket.
	// Default: 1h
	Expired time.Duration `yaml:"expired"`

	// SharedPath is the SQLite database path for the "shared" strategy.
	// Default: "data/buckets.db"
	SharedPath string `yaml:"shared_path"`
}

// PreauthConfig contains configuration for the pre-auth MITM proxy.
type PreauthConfig struct {
	// Enabled starts the interception listener. When false the gateway
	// runs without a captured-cookie source.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Bind is the TCP listen address for intercepted TLS traffic.
	// Default: "127.0.0.1:8999"
	Bind string `yaml:"bind"`

	// Upstream is the real host:port the intercepted session is relayed to.
	// Default: "chat.openai.com:443"
	Upstream string `yaml:"upstream"`

	// CACertFile and CAKeyFile locate the signing CA used to forge
	// per-host leaf certificates. Both are required when Enabled.
	CACertFile string `yaml:"ca_cert_file"`
	CAKeyFile  string `yaml:"ca_key_file"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// RedactCredentials scrubs Authorization headers, cookies, and token
	// fields from log output.
	// Default: true
	RedactCredentials bool `yaml:"redact_credentials"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
