// Package server ties the gateway together: it builds the route table,
// chains the middleware stack, owns the http.Server lifecycle, and
// serves the authentication endpoints alongside the proxied surfaces.
//
// Proxied routes (/dashboard, /v1, /backend-api, /public-api) are
// handled by the dispatcher; /auth/* and /api/auth/session are served
// locally against the credential manager; /healthz, /readyz, and
// /metrics are the operational surface.
//
// Requests pass through, outermost first: recovery, request ID, access
// logging, CORS, request timeout, the concurrency gate, and the body
// cap. Protected proxied routes additionally carry session
// authentication and token-bucket admission.
package server
