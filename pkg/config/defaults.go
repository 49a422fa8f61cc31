package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "0.0.0.0:7999"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 600 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 600 * time.Second
	DefaultConcurrency     = 65535
	DefaultMaxBodyBytes    = int64(200 << 20) // 200 MiB
	DefaultMaxHeaderBytes  = 1 << 20          // 1 MiB

	// CORS defaults
	DefaultCORSEnabled          = true
	DefaultCORSMaxAge           = 3600
	DefaultCORSAllowCredentials = true

	// Upstream defaults
	DefaultPlatformBaseURL     = "https://api.openai.com"
	DefaultWebBaseURL          = "https://chat.openai.com"
	DefaultUpstreamTimeout     = 600 * time.Second
	DefaultConnectTimeout      = 60 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 32
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultUpstreamMaxRetries  = 2

	// Auth defaults
	DefaultIdentityBaseURL = "https://auth0.openai.com"
	DefaultAuthClientID    = "pdlLIX2Y72MIl2rhLhTE9VV9bN905kBh"
	DefaultAuthStore       = "memory"
	DefaultSQLitePath      = "data/tokens.db"
	DefaultPruneSchedule   = "0 * * * *"

	// Rate limit defaults
	DefaultRateLimitStrategy = "local"
	DefaultRateLimitCapacity = int64(60)
	DefaultRateLimitFillRate = 1.0
	DefaultRateLimitExpired  = time.Hour
	DefaultSharedPath        = "data/buckets.db"

	// Preauth defaults
	DefaultPreauthBind     = "127.0.0.1:8999"
	DefaultPreauthUpstream = "chat.openai.com:443"

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults fills unset configuration fields with default values.
// It only modifies zero-valued fields; explicit settings are preserved.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.Concurrency == 0 {
		cfg.Server.Concurrency = DefaultConcurrency
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// CORS: a fully zero CORS section means "unset", so defaults apply.
	if !cfg.Server.CORS.Enabled && len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.Enabled = DefaultCORSEnabled
		cfg.Server.CORS.AllowCredentials = DefaultCORSAllowCredentials
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Upstream
	if cfg.Upstream.PlatformBaseURL == "" {
		cfg.Upstream.PlatformBaseURL = DefaultPlatformBaseURL
	}
	if cfg.Upstream.WebBaseURL == "" {
		cfg.Upstream.WebBaseURL = DefaultWebBaseURL
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.ConnectTimeout == 0 {
		cfg.Upstream.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.MaxIdleConnsPerHost == 0 {
		cfg.Upstream.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultIdleConnTimeout
	}
	if cfg.Upstream.MaxRetries == 0 {
		cfg.Upstream.MaxRetries = DefaultUpstreamMaxRetries
	}

	// Auth
	if cfg.Auth.IdentityBaseURL == "" {
		cfg.Auth.IdentityBaseURL = DefaultIdentityBaseURL
	}
	if cfg.Auth.ClientID == "" {
		cfg.Auth.ClientID = DefaultAuthClientID
	}
	if cfg.Auth.Store == "" {
		cfg.Auth.Store = DefaultAuthStore
	}
	if cfg.Auth.SQLitePath == "" {
		cfg.Auth.SQLitePath = DefaultSQLitePath
	}
	if cfg.Auth.PruneSchedule == "" {
		cfg.Auth.PruneSchedule = DefaultPruneSchedule
	}

	// Rate limit
	if cfg.RateLimit.Strategy == "" {
		cfg.RateLimit.Strategy = DefaultRateLimitStrategy
	}
	if cfg.RateLimit.Capacity == 0 {
		cfg.RateLimit.Capacity = DefaultRateLimitCapacity
	}
	if cfg.RateLimit.FillRate == 0 {
		cfg.RateLimit.FillRate = DefaultRateLimitFillRate
	}
	if cfg.RateLimit.Expired == 0 {
		cfg.RateLimit.Expired = DefaultRateLimitExpired
	}
	if cfg.RateLimit.SharedPath == "" {
		cfg.RateLimit.SharedPath = DefaultSharedPath
	}

	// Preauth
	if cfg.Preauth.Bind == "" {
		cfg.Preauth.Bind = DefaultPreauthBind
	}
	if cfg.Preauth.Upstream == "" {
		cfg.Preauth.Upstream = DefaultPreauthUpstream
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// NewDefaultConfig returns a Config populated entirely with defaults.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Telemetry.Logging.RedactCredentials = true
	ApplyDefaults(cfg)
	return cfg
}
