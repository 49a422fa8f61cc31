// Package ratelimit implements the admission-control primitives used by
// the gateway: a continuously refilling token bucket for per-key request
// rates and a counting semaphore for global in-flight concurrency.
//
// # Overview
//
// TokenBucket accrues fractional tokens at a fixed fill rate up to a
// fixed capacity and admits a request by spending one whole token.
// Refill is computed lazily from elapsed wall time on each check, so an
// idle bucket needs no background goroutine to recover.
//
// ConcurrencyGate caps simultaneous in-flight requests; callers queue on
// Acquire until a slot frees or their context deadline fires.
//
// # Usage
//
//	tb := ratelimit.NewTokenBucket(60, 1.0) // 60 burst, 1 req/s sustained
//	if !tb.Admit() {
//	    retryAfter := tb.RetryAfter()
//	    // deny with Retry-After
//	}
//
// Neither type knows about keys or storage; the storage package maps
// bucket keys to TokenBucket instances and the limits package selects a
// strategy and enforces policy.
package ratelimit
