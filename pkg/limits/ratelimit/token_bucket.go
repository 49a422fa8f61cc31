package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket implements continuous-refill token bucket admission control.
//
// # Algorithm
//
// The bucket starts full. On every admission check the elapsed time since
// the last successful admission is converted to tokens:
//
//	tokens = min(capacity, tokens + elapsed * fillRate)
//
// If at least one whole token is available the check admits, one token is
// consumed, and the refill timestamp advances. A denied check leaves the
// stored state untouched, so repeated denials never double-count elapsed
// time. Tokens accumulate fractionally, which makes sub-1/s fill rates
// exact: at fillRate 0.5 a drained bucket admits again after 2s, not 1s.
//
// # Thread Safety
//
// All methods serialize on an internal mutex. Each key owns its own bucket,
// so contention is per key, never across the key space.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	fillRate   float64
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time
}

// NewTokenBucket creates a full bucket.
//
// Parameters:
//   - capacity: maximum tokens (burst size)
//   - fillRate: tokens added per second
func NewTokenBucket(capacity int64, fillRate float64) *TokenBucket {
	now := time.Now()
	return &TokenBucket{
		capacity:   float64(capacity),
		fillRate:   fillRate,
		tokens:     float64(capacity),
		lastRefill: now,
		lastAccess: now,
	}
}

// Admit performs one atomic refill-and-decrement. It returns true and
// consumes a token when one is available, false otherwise.
func (tb *TokenBucket) Admit() bool {
	return tb.AdmitAt(time.Now())
}

// AdmitAt is Admit with an explicit clock, for deterministic tests.
func (tb *TokenBucket) AdmitAt(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.lastAccess = now

	tokens := tb.tokensAt(now)
	if tokens < 1 {
		return false
	}

	tb.tokens = tokens - 1
	tb.lastRefill = now
	return true
}

// Remaining returns the whole tokens currently available, including refill
// accrued since the last admission. It does not mutate the bucket.
func (tb *TokenBucket) Remaining() int64 {
	return tb.RemainingAt(time.Now())
}

// RemainingAt is Remaining with an explicit clock.
func (tb *TokenBucket) RemainingAt(now time.Time) int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return int64(tb.tokensAt(now))
}

// RetryAfter returns how long until the next check could admit.
// It returns zero when a token is already available.
func (tb *TokenBucket) RetryAfter() time.Duration {
	return tb.RetryAfterAt(time.Now())
}

// RetryAfterAt is RetryAfter with an explicit clock.
func (tb *TokenBucket) RetryAfterAt(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tokens := tb.tokensAt(now)
	if tokens >= 1 {
		return 0
	}
	missing := 1 - tokens
	return time.Duration(missing / tb.fillRate * float64(time.Second))
}

// tokensAt computes the refilled token count at now without storing it.
// Caller must hold mu. Negative elapsed (clock skew, out-of-order test
// clocks) counts as zero.
func (tb *TokenBucket) tokensAt(now time.Time) float64 {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Min(tb.capacity, tb.tokens+elapsed*tb.fillRate)
}

// LastAccess returns when the bucket was last checked, admitted or not.
// Idle-eviction sweeps key off this timestamp rather than lastRefill, so a
// key that is hammered while empty still counts as active.
func (tb *TokenBucket) LastAccess() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastAccess
}

// Reset refills the bucket to capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}
