package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testParams() Params {
	return Params{Capacity: 3, FillRate: 0.001}
}

// newTestBackends builds one backend per strategy so shared semantics are
// asserted against both implementations.
func newTestBackends(t *testing.T, params Params, retention time.Duration) map[string]Backend {
	t.Helper()

	mem, err := NewMemoryBackend(params, retention)
	if err != nil {
		t.Fatalf("NewMemoryBackend() error = %v", err)
	}

	sq, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "buckets.db"), params, retention)
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}

	backends := map[string]Backend{"memory": mem, "sqlite": sq}
	t.Cleanup(func() {
		for _, b := range backends {
			b.Close()
		}
	})
	return backends
}

// ============================================================================
// Shared backend semantics
// ============================================================================

func TestBackendBurstAdmitsCapacity(t *testing.T) {
	for name, backend := range newTestBackends(t, testParams(), time.Hour) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			admitted := 0
			for i := 0; i < 10; i++ {
				res, err := backend.Admit(ctx, "client-a")
				if err != nil {
					t.Fatalf("Admit() error = %v", err)
				}
				if res.Allowed {
					admitted++
				}
			}

			if admitted != 3 {
				t.Errorf("burst admitted %d, want 3 (capacity)", admitted)
			}
		})
	}
}

func TestBackendDenialCarriesRetryAfter(t *testing.T) {
	for name, backend := range newTestBackends(t, testParams(), time.Hour) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				if _, err := backend.Admit(ctx, "client-a"); err != nil {
					t.Fatalf("Admit() error = %v", err)
				}
			}

			res, err := backend.Admit(ctx, "client-a")
			if err != nil {
				t.Fatalf("Admit() error = %v", err)
			}
			if res.Allowed {
				t.Fatal("expected denial after capacity exhausted")
			}
			if res.Reason != "rate_limit_exceeded" {
				t.Errorf("Reason = %q, want %q", res.Reason, "rate_limit_exceeded")
			}
			if res.RetryAfter <= 0 {
				t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
			}
			if res.Limit != 3 {
				t.Errorf("Limit = %d, want 3", res.Limit)
			}
		})
	}
}

func TestBackendKeysAreIsolated(t *testing.T) {
	for name, backend := range newTestBackends(t, testParams(), time.Hour) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Exhaust one key entirely.
			for i := 0; i < 4; i++ {
				if _, err := backend.Admit(ctx, "client-a"); err != nil {
					t.Fatalf("Admit() error = %v", err)
				}
			}

			// Another key still has its full burst.
			for i := 0; i < 3; i++ {
				res, err := backend.Admit(ctx, "client-b")
				if err != nil {
					t.Fatalf("Admit() error = %v", err)
				}
				if !res.Allowed {
					t.Errorf("client-b admission %d denied despite isolated state", i)
				}
			}
		})
	}
}

func TestBackendIdleKeyResetsToFull(t *testing.T) {
	// Retention far below the refill interval: the reset must come from
	// eviction, not refill.
	for name, backend := range newTestBackends(t, testParams(), 30*time.Millisecond) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				if _, err := backend.Admit(ctx, "client-a"); err != nil {
					t.Fatalf("Admit() error = %v", err)
				}
			}
			if res, _ := backend.Admit(ctx, "client-a"); res.Allowed {
				t.Fatal("expected denial before idle period")
			}

			time.Sleep(60 * time.Millisecond)

			admitted := 0
			for i := 0; i < 3; i++ {
				res, err := backend.Admit(ctx, "client-a")
				if err != nil {
					t.Fatalf("Admit() error = %v", err)
				}
				if res.Allowed {
					admitted++
				}
			}
			if admitted != 3 {
				t.Errorf("admitted %d after idle reset, want full capacity 3", admitted)
			}
		})
	}
}

func TestBackendCleanupEvictsIdleKeys(t *testing.T) {
	for name, backend := range newTestBackends(t, testParams(), time.Hour) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := backend.Admit(ctx, "client-a"); err != nil {
				t.Fatalf("Admit() error = %v", err)
			}
			if _, err := backend.Admit(ctx, "client-b"); err != nil {
				t.Fatalf("Admit() error = %v", err)
			}

			if n, err := backend.Size(ctx); err != nil || n != 2 {
				t.Fatalf("Size() = %d, %v, want 2, nil", n, err)
			}

			// Everything is older than a cutoff in the future.
			deleted, err := backend.Cleanup(ctx, time.Now().Add(time.Minute))
			if err != nil {
				t.Fatalf("Cleanup() error = %v", err)
			}
			if deleted != 2 {
				t.Errorf("Cleanup() deleted %d, want 2", deleted)
			}
			if n, _ := backend.Size(ctx); n != 0 {
				t.Errorf("Size() after cleanup = %d, want 0", n)
			}
		})
	}
}

func TestBackendEmptyKeyRejected(t *testing.T) {
	for name, backend := range newTestBackends(t, testParams(), time.Hour) {
		t.Run(name, func(t *testing.T) {
			if _, err := backend.Admit(context.Background(), ""); err == nil {
				t.Error("Admit(\"\") expected error")
			}
		})
	}
}

func TestBackendConcurrentAdmissionsNeverExceedCapacity(t *testing.T) {
	for name, backend := range newTestBackends(t, Params{Capacity: 10, FillRate: 0.000001}, time.Hour) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wg sync.WaitGroup
			var mu sync.Mutex
			admitted := 0

			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := backend.Admit(ctx, "hot-key")
					if err != nil {
						t.Errorf("Admit() error = %v", err)
						return
					}
					if res.Allowed {
						mu.Lock()
						admitted++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if admitted != 10 {
				t.Errorf("concurrent burst admitted %d, want exactly 10", admitted)
			}
		})
	}
}

// ============================================================================
// Construction
// ============================================================================

func TestBackendConstructorsValidateParams(t *testing.T) {
	if _, err := NewMemoryBackend(Params{Capacity: 0, FillRate: 1}, time.Hour); err == nil {
		t.Error("NewMemoryBackend with zero capacity expected error")
	}
	if _, err := NewMemoryBackend(Params{Capacity: 1, FillRate: 0}, time.Hour); err == nil {
		t.Error("NewMemoryBackend with zero fill rate expected error")
	}
	if _, err := NewSQLiteBackend("", Params{Capacity: 1, FillRate: 1}, time.Hour); err == nil {
		t.Error("NewSQLiteBackend with empty path expected error")
	}
}

// ============================================================================
// SQLite specifics
// ============================================================================

func TestSQLiteBackendStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "buckets.db")
	params := testParams()

	first, err := NewSQLiteBackend(dbPath, params, time.Hour)
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := first.Admit(ctx, "client-a"); err != nil {
			t.Fatalf("Admit() error = %v", err)
		}
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := NewSQLiteBackend(dbPath, params, time.Hour)
	if err != nil {
		t.Fatalf("NewSQLiteBackend() reopen error = %v", err)
	}
	defer second.Close()

	res, err := second.Admit(ctx, "client-a")
	if err != nil {
		t.Fatalf("Admit() after reopen error = %v", err)
	}
	if res.Allowed {
		t.Error("drained bucket admitted after reopen; state did not persist")
	}
}

func TestSQLiteBackendCloseIdempotent(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "buckets.db"), testParams(), time.Hour)
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}

	if err := backend.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
