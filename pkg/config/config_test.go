package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ============================================================================
// Defaults
// ============================================================================

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("Expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
	}
	if cfg.Server.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Errorf("Expected max body bytes %d, got %d", DefaultMaxBodyBytes, cfg.Server.MaxBodyBytes)
	}
	if cfg.Upstream.PlatformBaseURL != "https://api.openai.com" {
		t.Errorf("Unexpected platform base URL: %q", cfg.Upstream.PlatformBaseURL)
	}
	if cfg.Upstream.WebBaseURL != "https://chat.openai.com" {
		t.Errorf("Unexpected web base URL: %q", cfg.Upstream.WebBaseURL)
	}
	if cfg.RateLimit.Strategy != "local" {
		t.Errorf("Expected local strategy default, got %q", cfg.RateLimit.Strategy)
	}
	if cfg.RateLimit.Enabled {
		t.Error("Rate limiting should be disabled by default")
	}
	if !cfg.Telemetry.Logging.RedactCredentials {
		t.Error("Credential redaction should be on by default")
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.ListenAddress = "127.0.0.1:9000"
	cfg.RateLimit.Capacity = 5

	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("Explicit listen address overwritten: %q", cfg.Server.ListenAddress)
	}
	if cfg.RateLimit.Capacity != 5 {
		t.Errorf("Explicit capacity overwritten: %d", cfg.RateLimit.Capacity)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("Unset read timeout not defaulted: %v", cfg.Server.ReadTimeout)
	}
}

// ============================================================================
// Validation
// ============================================================================

func TestValidate_UnknownRateLimitStrategy(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.RateLimit.Strategy = "redis"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for unknown strategy")
	}
	if !strings.Contains(err.Error(), "rate_limit.strategy") {
		t.Errorf("Error should name the failing field: %v", err)
	}
}

func TestValidate_SharedStrategyRequiresPath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.RateLimit.Strategy = "shared"
	cfg.RateLimit.SharedPath = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for missing shared_path")
	}
}

func TestValidate_PreauthRequiresCA(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Preauth.Enabled = true

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for preauth without CA files")
	}
	if !strings.Contains(err.Error(), "ca_cert_file") {
		t.Errorf("Error should mention the CA requirement: %v", err)
	}

	cfg.Preauth.CACertFile = "ca.pem"
	cfg.Preauth.CAKeyFile = "ca.key"
	if err := Validate(cfg); err != nil {
		t.Errorf("Preauth with CA files should validate: %v", err)
	}
}

func TestValidate_TLSPair(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Server.TLSCertFile = "cert.pem"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for cert without key")
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.RateLimit.Strategy = "nope"
	cfg.Upstream.PlatformBaseURL = "://bad"
	cfg.Telemetry.Logging.Level = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("Expected ValidationError, got %T", err)
	}
	if len(verr.Errors) < 3 {
		t.Errorf("Expected at least 3 field errors, got %d: %v", len(verr.Errors), err)
	}
}

// ============================================================================
// Loading
// ============================================================================

const testYAML = `
server:
  listen_address: "127.0.0.1:7999"
  request_timeout: "90s"
  concurrency: 128
rate_limit:
  enabled: true
  strategy: "local"
  capacity: 10
  fill_rate: 2.5
  expired: "300s"
upstream:
  web_base_url: "https://chat.example.test"
telemetry:
  logging:
    level: "debug"
    format: "text"
`

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:7999" {
		t.Errorf("Unexpected listen address: %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.RequestTimeout != 90*time.Second {
		t.Errorf("Unexpected request timeout: %v", cfg.Server.RequestTimeout)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.FillRate != 2.5 {
		t.Errorf("Rate limit section not parsed: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Expired != 300*time.Second {
		t.Errorf("Unexpected expired: %v", cfg.RateLimit.Expired)
	}
	// Unset sections still get defaults.
	if cfg.Upstream.PlatformBaseURL != DefaultPlatformBaseURL {
		t.Errorf("Platform base URL should default: %q", cfg.Upstream.PlatformBaseURL)
	}
	if cfg.Upstream.WebBaseURL != "https://chat.example.test" {
		t.Errorf("Explicit web base URL lost: %q", cfg.Upstream.WebBaseURL)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadConfig_InvalidStrategyFailsFast(t *testing.T) {
	bad := strings.Replace(testYAML, `strategy: "local"`, `strategy: "cluster"`, 1)
	if _, err := LoadConfig(writeConfigFile(t, bad)); err == nil {
		t.Fatal("Expected startup failure for invalid strategy")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("NINJA_SERVER_LISTEN_ADDRESS", "0.0.0.0:8088")
	t.Setenv("NINJA_RATE_LIMIT_CAPACITY", "99")
	t.Setenv("NINJA_RATE_LIMIT_FILL_RATE", "0.5")
	t.Setenv("NINJA_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(writeConfigFile(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:8088" {
		t.Errorf("Env override not applied: %q", cfg.Server.ListenAddress)
	}
	if cfg.RateLimit.Capacity != 99 || cfg.RateLimit.FillRate != 0.5 {
		t.Errorf("Rate limit env overrides not applied: %+v", cfg.RateLimit)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("Logging level override not applied: %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_RevalidatesAfterOverride(t *testing.T) {
	t.Setenv("NINJA_RATE_LIMIT_STRATEGY", "memcached")

	if _, err := LoadConfigWithEnvOverrides(writeConfigFile(t, testYAML)); err == nil {
		t.Fatal("Expected validation failure after bad env override")
	}
}
