// Ninja is a reverse-proxy gateway for the OpenAI platform and web API
// surfaces.
//
// It fronts the upstream with session-cookie authentication, proactive
// credential renewal, token-bucket admission control, streaming
// response re-conversion, and an optional TLS-intercepting pre-auth
// proxy that harvests the upstream anti-bot cookie.
//
// Usage:
//
//	# Start the gateway with the default configuration file
//	ninja serve
//
//	# Start with a custom configuration
//	ninja serve --config /etc/ninja/config.yaml
//
//	# Validate a configuration file without starting
//	ninja validate --config config.yaml
//
//	# Generate the interception CA used by the pre-auth proxy
//	ninja ca generate --out ./ca
//
//	# Hash a pre-shared login key for the key file
//	ninja keys hash
package main

func main() {
	Execute()
}
