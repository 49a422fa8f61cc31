package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)
	errs = append(errs, validatePreauth(&cfg.Preauth)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.request_timeout",
			Message: "request timeout must be positive",
		})
	}
	if cfg.Concurrency < 0 {
		errs = append(errs, FieldError{
			Field:   "server.concurrency",
			Message: "concurrency must not be negative",
		})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be positive",
		})
	}

	// TLS requires both halves of the pair.
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		errs = append(errs, FieldError{
			Field:   "server.tls_cert_file",
			Message: "tls_cert_file and tls_key_file must be set together",
		})
	}

	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	for _, target := range []struct {
		field string
		value string
	}{
		{"upstream.platform_base_url", cfg.PlatformBaseURL},
		{"upstream.web_base_url", cfg.WebBaseURL},
	} {
		if target.value == "" {
			errs = append(errs, FieldError{Field: target.field, Message: "base URL is required"})
			continue
		}
		u, err := url.Parse(target.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   target.field,
				Message: fmt.Sprintf("invalid base URL %q", target.value),
			})
		}
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.max_retries",
			Message: "max retries must not be negative",
		})
	}

	return errs
}

func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	if cfg.IdentityBaseURL == "" {
		errs = append(errs, FieldError{
			Field:   "auth.identity_base_url",
			Message: "identity base URL is required",
		})
	}
	switch cfg.Store {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "auth.store",
			Message: fmt.Sprintf("unknown store %q (expected \"memory\" or \"sqlite\")", cfg.Store),
		})
	}
	if cfg.Store == "sqlite" && cfg.SQLitePath == "" {
		errs = append(errs, FieldError{
			Field:   "auth.sqlite_path",
			Message: "sqlite_path is required for the sqlite store",
		})
	}

	return errs
}

// validateRateLimit rejects unknown strategies so a typo fails at startup
// instead of silently running with no admission control.
func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError

	switch cfg.Strategy {
	case "local", "shared":
	default:
		errs = append(errs, FieldError{
			Field:   "rate_limit.strategy",
			Message: fmt.Sprintf("unknown strategy %q (expected \"local\" or \"shared\")", cfg.Strategy),
		})
	}
	if cfg.Capacity <= 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.capacity",
			Message: "capacity must be positive",
		})
	}
	if cfg.FillRate <= 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.fill_rate",
			Message: "fill rate must be positive",
		})
	}
	if cfg.Expired <= 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.expired",
			Message: "expired must be positive",
		})
	}
	if cfg.Strategy == "shared" && cfg.SharedPath == "" {
		errs = append(errs, FieldError{
			Field:   "rate_limit.shared_path",
			Message: "shared_path is required for the shared strategy",
		})
	}

	return errs
}

func validatePreauth(cfg *PreauthConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}
	if cfg.Bind == "" {
		errs = append(errs, FieldError{
			Field:   "preauth.bind",
			Message: "bind address is required when preauth is enabled",
		})
	}
	if cfg.Upstream == "" || !strings.Contains(cfg.Upstream, ":") {
		errs = append(errs, FieldError{
			Field:   "preauth.upstream",
			Message: "upstream must be a host:port",
		})
	}
	if cfg.CACertFile == "" || cfg.CAKeyFile == "" {
		errs = append(errs, FieldError{
			Field:   "preauth.ca_cert_file",
			Message: "ca_cert_file and ca_key_file are required when preauth is enabled",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	return errs
}
