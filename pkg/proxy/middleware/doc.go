// Package middleware provides the HTTP middleware chain wrapped around
// the gateway's routes.
//
// The chain, outermost first: recovery, request id, access logging,
// CORS, request timeout, concurrency gate, then per-route protections
// (session authentication, admission control, body limit). Every
// middleware writes failures in the gateway's JSON error envelope so
// clients see one error shape regardless of which layer rejected them.
package middleware
