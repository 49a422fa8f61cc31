package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := &Config{}
	cfg.Telemetry.Logging.RedactCredentials = true
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention NINJA_SECTION_FIELD (e.g., NINJA_SERVER_LISTEN_ADDRESS) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies NINJA_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.ListenAddress, "NINJA_SERVER_LISTEN_ADDRESS")
	setString(&cfg.Server.TLSCertFile, "NINJA_SERVER_TLS_CERT_FILE")
	setString(&cfg.Server.TLSKeyFile, "NINJA_SERVER_TLS_KEY_FILE")
	setDuration(&cfg.Server.ReadTimeout, "NINJA_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "NINJA_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.RequestTimeout, "NINJA_SERVER_REQUEST_TIMEOUT")
	setInt(&cfg.Server.Concurrency, "NINJA_SERVER_CONCURRENCY")
	setInt64(&cfg.Server.MaxBodyBytes, "NINJA_SERVER_MAX_BODY_BYTES")

	setString(&cfg.Upstream.PlatformBaseURL, "NINJA_UPSTREAM_PLATFORM_BASE_URL")
	setString(&cfg.Upstream.WebBaseURL, "NINJA_UPSTREAM_WEB_BASE_URL")
	setDuration(&cfg.Upstream.Timeout, "NINJA_UPSTREAM_TIMEOUT")
	setString(&cfg.Upstream.UserAgent, "NINJA_UPSTREAM_USER_AGENT")

	setString(&cfg.Auth.IdentityBaseURL, "NINJA_AUTH_IDENTITY_BASE_URL")
	setString(&cfg.Auth.ClientID, "NINJA_AUTH_CLIENT_ID")
	setString(&cfg.Auth.KeyFile, "NINJA_AUTH_KEY_FILE")
	setBool(&cfg.Auth.WatchKeyFile, "NINJA_AUTH_WATCH_KEY_FILE")
	setString(&cfg.Auth.Store, "NINJA_AUTH_STORE")
	setString(&cfg.Auth.SQLitePath, "NINJA_AUTH_SQLITE_PATH")
	setString(&cfg.Auth.PruneSchedule, "NINJA_AUTH_PRUNE_SCHEDULE")

	setBool(&cfg.RateLimit.Enabled, "NINJA_RATE_LIMIT_ENABLED")
	setString(&cfg.RateLimit.Strategy, "NINJA_RATE_LIMIT_STRATEGY")
	setInt64(&cfg.RateLimit.Capacity, "NINJA_RATE_LIMIT_CAPACITY")
	setFloat(&cfg.RateLimit.FillRate, "NINJA_RATE_LIMIT_FILL_RATE")
	setDuration(&cfg.RateLimit.Expired, "NINJA_RATE_LIMIT_EXPIRED")
	setString(&cfg.RateLimit.SharedPath, "NINJA_RATE_LIMIT_SHARED_PATH")

	setBool(&cfg.Preauth.Enabled, "NINJA_PREAUTH_ENABLED")
	setString(&cfg.Preauth.Bind, "NINJA_PREAUTH_BIND")
	setString(&cfg.Preauth.Upstream, "NINJA_PREAUTH_UPSTREAM")
	setString(&cfg.Preauth.CACertFile, "NINJA_PREAUTH_CA_CERT_FILE")
	setString(&cfg.Preauth.CAKeyFile, "NINJA_PREAUTH_CA_KEY_FILE")

	setString(&cfg.Telemetry.Logging.Level, "NINJA_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "NINJA_LOGGING_FORMAT")
	setBool(&cfg.Telemetry.Metrics.Enabled, "NINJA_METRICS_ENABLED")
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setInt64(dst *int64, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
