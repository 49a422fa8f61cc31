package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/xhd193694/ninja/pkg/limits/ratelimit"
)

// MemoryBackend implements Backend with in-process bucket state.
// This is the default backend: no persistence, no cross-process sharing,
// all state lost on restart.
//
// The key space is split across independently locked shards so concurrent
// checks for different keys rarely contend; checks for the same key
// serialize on that bucket's own mutex.
type MemoryBackend struct {
	params    Params
	retention time.Duration
	shards    []*memoryShard
}

type memoryShard struct {
	mu      sync.RWMutex
	buckets map[string]*ratelimit.TokenBucket
}

// MemoryBackendConfig configures the memory backend.
type MemoryBackendConfig struct {
	// Params is the bucket geometry applied to every key.
	Params Params

	// Retention is how long an idle key keeps its state. A key not
	// checked within this period resets to a full bucket.
	// Default: 1 hour.
	Retention time.Duration

	// ShardCount is the number of lock shards. Default: 32.
	ShardCount int
}

// NewMemoryBackend creates an in-memory backend with default retention
// and sharding.
func NewMemoryBackend(params Params, retention time.Duration) (*MemoryBackend, error) {
	return NewMemoryBackendWithConfig(MemoryBackendConfig{
		Params:    params,
		Retention: retention,
	})
}

// NewMemoryBackendWithConfig creates an in-memory backend with custom
// configuration.
func NewMemoryBackendWithConfig(cfg MemoryBackendConfig) (*MemoryBackend, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = 32
	}

	shards := make([]*memoryShard, cfg.ShardCount)
	for i := range shards {
		shards[i] = &memoryShard{buckets: make(map[string]*ratelimit.TokenBucket)}
	}

	return &MemoryBackend{
		params:    cfg.Params,
		retention: cfg.Retention,
		shards:    shards,
	}, nil
}

// Admit runs one admission check for key against its in-process bucket.
func (m *MemoryBackend) Admit(ctx context.Context, key string) (ratelimit.CheckResult, error) {
	if key == "" {
		return ratelimit.CheckResult{}, fmt.Errorf("bucket key cannot be empty")
	}

	now := time.Now()
	b := m.bucket(key, now)

	res := ratelimit.CheckResult{Limit: m.params.Capacity}
	if b.AdmitAt(now) {
		res.Allowed = true
		res.Remaining = b.RemainingAt(now)
		return res, nil
	}

	res.Reason = ratelimit.ReasonRateLimited
	res.RetryAfter = b.RetryAfterAt(now)
	return res, nil
}

// bucket returns the live bucket for key, creating a fresh full one when
// the key is new or its state is idle past retention. The lazy reset makes
// eviction semantics independent of sweep timing.
func (m *MemoryBackend) bucket(key string, now time.Time) *ratelimit.TokenBucket {
	shard := m.shardFor(key)

	shard.mu.RLock()
	b, ok := shard.buckets[key]
	shard.mu.RUnlock()
	if ok && now.Sub(b.LastAccess()) < m.retention {
		return b
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if b, ok := shard.buckets[key]; ok && now.Sub(b.LastAccess()) < m.retention {
		return b
	}
	b = ratelimit.NewTokenBucket(m.params.Capacity, m.params.FillRate)
	shard.buckets[key] = b
	return b
}

func (m *MemoryBackend) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

// Cleanup evicts keys whose last check is older than olderThan.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	deleted := 0
	for _, shard := range m.shards {
		shard.mu.Lock()
		for key, b := range shard.buckets {
			if b.LastAccess().Before(olderThan) {
				delete(shard.buckets, key)
				deleted++
			}
		}
		shard.mu.Unlock()
	}
	return deleted, nil
}

// Size returns the number of keys currently tracked across all shards.
func (m *MemoryBackend) Size(ctx context.Context) (int, error) {
	n := 0
	for _, shard := range m.shards {
		shard.mu.RLock()
		n += len(shard.buckets)
		shard.mu.RUnlock()
	}
	return n, nil
}

// Close releases resources. The memory backend holds none beyond the
// shard maps, so this is a no-op; it exists to satisfy Backend.
func (m *MemoryBackend) Close() error {
	return nil
}
