// Package upstream owns the HTTP client shared by everything that talks
// to the provider: the dispatcher's proxied traffic and the auth layer's
// identity exchanges.
//
// # Overview
//
// One pooled transport serves both API surfaces. Proxied requests go
// through Do: no retries, no buffering, deadline from the request
// context. Identity exchanges go through DoJSON: marshaled, retried with
// exponential backoff on transport failures and 5xx responses, decoded
// on success.
//
// Transport outcomes feed a small health circuit; three consecutive
// failures mark the upstream unhealthy until the next success, and the
// readiness endpoint reports the snapshot.
package upstream
