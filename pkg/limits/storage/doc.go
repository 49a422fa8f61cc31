// Package storage provides the pluggable bucket-state backends behind the
// admission-control layer.
//
// # Overview
//
// Two Backend implementations exist:
//
//   - MemoryBackend: in-process sharded map, the "local" strategy. Fast,
//     no persistence, state scoped to one process.
//   - SQLiteBackend: a SQLite file opened by every process on the host,
//     the "shared" strategy. Each admission check is one immediate write
//     transaction, so refill and decrement are atomic across processes.
//
// Both backends share the same semantics: a new or long-idle key begins
// with a full bucket, denials never consume accrued refill, and keys idle
// past the retention period are evicted by a background sweep.
package storage
