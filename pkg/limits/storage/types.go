package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/xhd193694/ninja/pkg/limits/ratelimit"
)

// Params fixes the bucket geometry shared by every key in a backend.
// Capacity is the burst size; FillRate is tokens replenished per second.
type Params struct {
	Capacity int64
	FillRate float64
}

// Validate reports whether the parameters describe a usable bucket.
func (p Params) Validate() error {
	if p.Capacity < 1 {
		return fmt.Errorf("bucket capacity must be at least 1, got %d", p.Capacity)
	}
	if p.FillRate <= 0 {
		return fmt.Errorf("bucket fill rate must be positive, got %g", p.FillRate)
	}
	return nil
}

// Backend persists per-key bucket state and performs admission checks.
// Implementations must be thread-safe; Admit must be atomic per key, so
// concurrent checks for the same key never observe a half-applied
// refill-and-decrement.
type Backend interface {
	// Admit runs one refill-check-decrement cycle for key and reports
	// the outcome. A key seen for the first time, or idle past the
	// backend's retention, starts with a full bucket.
	Admit(ctx context.Context, key string) (ratelimit.CheckResult, error)

	// Cleanup evicts keys whose last check is older than olderThan.
	// Returns the number of keys removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Size returns the number of keys currently tracked.
	Size(ctx context.Context) (int, error)

	// Close stops background maintenance and releases resources.
	// The backend must not be used after Close.
	Close() error
}
