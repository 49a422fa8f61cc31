package limits

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xhd193694/ninja/pkg/limits/ratelimit"
	"github.com/xhd193694/ninja/pkg/limits/storage"
)

func testConfig() Config {
	return Config{
		Enabled:  true,
		Strategy: StrategyLocal,
		Capacity: 3,
		FillRate: 1.0,
		Expired:  time.Hour,
	}
}

// ============================================================================
// Construction
// ============================================================================

func TestNewManagerLocalStrategy(t *testing.T) {
	m, err := NewManager(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if !m.Enabled() {
		t.Error("Enabled() = false, want true")
	}
	if m.Strategy() != StrategyLocal {
		t.Errorf("Strategy() = %q, want %q", m.Strategy(), StrategyLocal)
	}
}

func TestNewManagerSharedStrategy(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = StrategyShared
	cfg.SharedPath = filepath.Join(t.TempDir(), "buckets.db")

	m, err := NewManager(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	res, err := m.Check(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Allowed {
		t.Error("first check against shared backend denied")
	}
}

func TestNewManagerUnknownStrategyFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = "redis"

	if _, err := NewManager(cfg, nil, nil); err == nil {
		t.Fatal("NewManager() with unknown strategy expected error")
	}
}

func TestNewManagerSharedStrategyRequiresPath(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = StrategyShared
	cfg.SharedPath = ""

	if _, err := NewManager(cfg, nil, nil); err == nil {
		t.Fatal("NewManager() shared strategy without path expected error")
	}
}

// ============================================================================
// Admission behavior
// ============================================================================

func TestManagerDisabledAdmitsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	cfg.Strategy = "nonsense" // never inspected when disabled

	m, err := NewManager(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	for i := 0; i < 100; i++ {
		res, err := m.Check(context.Background(), "client-a")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("check %d denied with limiter disabled", i)
		}
	}
}

func TestManagerEnforcesCapacity(t *testing.T) {
	m, err := NewManager(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	admitted := 0
	for i := 0; i < 10; i++ {
		res, err := m.Check(ctx, "client-a")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if res.Allowed {
			admitted++
		}
	}

	if admitted != 3 {
		t.Errorf("admitted %d, want 3 (capacity)", admitted)
	}
}

func TestManagerKeysIsolated(t *testing.T) {
	m, err := NewManager(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.Check(ctx, "client-a")
	}

	res, err := m.Check(ctx, "client-b")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Allowed {
		t.Error("client-b denied after client-a exhausted its own bucket")
	}
}

// ============================================================================
// Failure handling
// ============================================================================

// failingBackend simulates an unreachable shared store.
type failingBackend struct{}

func (f *failingBackend) Admit(ctx context.Context, key string) (ratelimit.CheckResult, error) {
	return ratelimit.CheckResult{}, errors.New("backend unreachable")
}

func (f *failingBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, errors.New("backend unreachable")
}

func (f *failingBackend) Size(ctx context.Context) (int, error) {
	return 0, errors.New("backend unreachable")
}

func (f *failingBackend) Close() error { return nil }

func TestManagerFailsClosedOnBackendError(t *testing.T) {
	m := NewManagerWithBackend(testConfig(), &failingBackend{}, nil, nil)
	defer m.Close()

	res, err := m.Check(context.Background(), "client-a")
	if err == nil {
		t.Fatal("Check() against broken backend expected error")
	}
	if res.Allowed {
		t.Error("broken backend admitted a request; must fail closed")
	}
	if res.Reason != ratelimit.ReasonBackendError {
		t.Errorf("Reason = %q, want %q", res.Reason, ratelimit.ReasonBackendError)
	}
}

func TestManagerCloseIdempotent(t *testing.T) {
	m, err := NewManager(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if err := m.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// ============================================================================
// Metrics wiring
// ============================================================================

func TestManagerRecordsMetrics(t *testing.T) {
	metrics := NewMetrics(nil)
	m := NewManagerWithBackend(testConfig(), mustMemoryBackend(t), nil, metrics)
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := m.Check(ctx, "client-a"); err != nil {
			t.Fatalf("Check() error = %v", err)
		}
	}

	allowed := testutil.ToFloat64(metrics.checks.WithLabelValues(StrategyLocal, outcomeAllowed))
	if allowed != 3 {
		t.Errorf("allowed checks counter = %v, want 3", allowed)
	}
	denied := testutil.ToFloat64(metrics.checks.WithLabelValues(StrategyLocal, outcomeDenied))
	if denied != 2 {
		t.Errorf("denied checks counter = %v, want 2", denied)
	}
}

func TestManagerRecordsBackendErrors(t *testing.T) {
	metrics := NewMetrics(nil)
	m := NewManagerWithBackend(testConfig(), &failingBackend{}, nil, metrics)
	defer m.Close()

	m.Check(context.Background(), "client-a")

	errs := testutil.ToFloat64(metrics.checks.WithLabelValues(StrategyLocal, outcomeError))
	if errs != 1 {
		t.Errorf("error checks counter = %v, want 1", errs)
	}
}

func mustMemoryBackend(t *testing.T) storage.Backend {
	t.Helper()
	b, err := storage.NewMemoryBackend(storage.Params{Capacity: 3, FillRate: 1.0}, time.Hour)
	if err != nil {
		t.Fatalf("NewMemoryBackend() error = %v", err)
	}
	return b
}
