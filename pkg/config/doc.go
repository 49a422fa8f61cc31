// Package config defines the ninja gateway's configuration model and loading.
//
// # Overview
//
// Configuration is a single YAML document with sections for the HTTP server,
// the two upstream API surfaces, credential handling, token-bucket admission
// control, the pre-auth interception proxy, and telemetry. Loading applies
// defaults, then optional NINJA_* environment overrides, then validation.
//
// # Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    // a misconfigured strategy or missing file fails here, at startup
//	}
//	srv := server.New(cfg, deps)
//
// The loaded Config is constructed once in cmd/ninja and passed by reference
// into every component; there is no package-level configuration state.
package config
