// Package limits provides per-client admission control for the gateway.
//
// # Overview
//
// Each proxied request is checked against a continuously refilling token
// bucket keyed by client identity (bearer token when present, client
// address otherwise). Bucket state lives in one of two backends selected
// at startup:
//
//   - "local": an in-process sharded map (package storage.MemoryBackend)
//   - "shared": a SQLite file shared across processes on the host
//     (package storage.SQLiteBackend)
//
// The Manager wraps the backend with the enabled switch, fail-closed
// error handling, Prometheus metrics, and a periodic sweep that evicts
// keys idle past the configured expiry.
//
// # Usage
//
//	manager, err := limits.NewManager(limits.Config{
//	    Enabled:  true,
//	    Strategy: limits.StrategyLocal,
//	    Capacity: 60,
//	    FillRate: 1.0,
//	    Expired:  time.Hour,
//	}, logger, limits.NewMetrics(registry))
//	if err != nil {
//	    return err // unknown strategy, bad parameters
//	}
//	defer manager.Close()
//
//	res, err := manager.Check(ctx, bucketKey)
//	if err != nil {
//	    // backend failure: respond 500, never admit
//	}
//	if !res.Allowed {
//	    // respond 429 with res.RetryAfter
//	}
package limits
