package ratelimit

import (
	"context"
)

// ConcurrencyGate bounds the number of simultaneously in-flight proxied
// requests across the whole process.
//
// # Algorithm
//
// A buffered channel acts as a counting semaphore. Acquire blocks until a
// slot frees or the caller's context expires, so excess requests queue
// behind the request-timeout layer instead of failing immediately; a
// request that cannot get a slot in time surfaces a timeout error.
//
// # Thread Safety
//
// ConcurrencyGate is safe for concurrent use; all state lives in the
// channel.
type ConcurrencyGate struct {
	slots chan struct{}
}

// NewConcurrencyGate creates a gate with the given capacity.
// A non-positive limit returns a nil gate, which admits everything.
func NewConcurrencyGate(limit int) *ConcurrencyGate {
	if limit <= 0 {
		return nil
	}
	return &ConcurrencyGate{slots: make(chan struct{}, limit)}
}

// Acquire blocks until a slot is available or ctx is done. It returns
// ctx.Err() when the wait is abandoned. On success the caller MUST call
// Release:
//
//	if err := gate.Acquire(ctx); err != nil {
//	    return err // queueing timeout
//	}
//	defer gate.Release()
func (g *ConcurrencyGate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without waiting. Returns false when full.
func (g *ConcurrencyGate) TryAcquire() bool {
	if g == nil {
		return true
	}
	select {
	case g.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (g *ConcurrencyGate) Release() {
	if g == nil {
		return
	}
	select {
	case <-g.slots:
	default:
		// Unpaired Release; accounting stays non-negative.
	}
}

// Current returns the number of slots in use.
func (g *ConcurrencyGate) Current() int {
	if g == nil {
		return 0
	}
	return len(g.slots)
}

// Limit returns the configured capacity, or 0 for an unlimited gate.
func (g *ConcurrencyGate) Limit() int {
	if g == nil {
		return 0
	}
	return cap(g.slots)
}
