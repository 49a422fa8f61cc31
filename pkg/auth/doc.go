// Package auth implements the credential and session layer of the
// gateway.
//
// # Overview
//
// The Manager drives the credential lifecycle against the upstream
// identity provider: password-grant login, proactive refresh once a
// token's remaining lifetime falls to or below the renewal threshold
// (six hours), best-effort revocation, and the cookie-based browser
// flow that exchanges an upstream session cookie for an access token.
// Exchanged credentials are persisted to a TokenStore (in-process or
// SQLite-backed) keyed by account identity, with a cron-scheduled
// Pruner dropping expired entries.
//
// Clients hold their credential as an opaque session cookie (Session);
// the gateway re-issues it whenever a near-expiry access triggers
// renewal and clears it on logout. Refresh failures never invalidate a
// still-valid token: the session rides out its remaining lifetime and
// only true expiry forces re-authentication.
//
// The login endpoint can additionally be gated behind pre-shared keys
// (Keyring), stored bcrypt-hashed in a YAML file and hot-reloaded on
// file change.
//
// # Usage
//
//	client, err := auth.NewClient(upstreamClient, auth.ClientConfig{
//	    BaseURL:  "https://auth0.openai.com",
//	    ClientID: "pdlLIX2Y72MIl2rhLhTE9VV9bN905kBh",
//	}, logger)
//	if err != nil {
//	    return err
//	}
//
//	manager, err := auth.NewManager(client, store, logger)
//	if err != nil {
//	    return err
//	}
//
//	token, err := manager.Login(ctx, auth.Account{
//	    Username: "user@example.com",
//	    Password: "secret",
//	})
package auth
