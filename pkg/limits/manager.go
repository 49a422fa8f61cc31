package limits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xhd193694/ninja/pkg/limits/ratelimit"
	"github.com/xhd193694/ninja/pkg/limits/storage"
	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// sweepInterval is how often the manager evicts idle keys and refreshes
// the tracked-keys gauge.
const sweepInterval = time.Minute

// Manager is the admission-control layer in front of the proxied routes.
// It owns one storage backend selected by strategy, applies the
// enabled/disabled switch, and fails closed when the backend errors.
type Manager struct {
	enabled   bool
	strategy  string
	expired   time.Duration
	backend   storage.Backend
	metrics   *Metrics
	logger    *logging.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager builds the admission-control layer from configuration.
// An unknown strategy is a startup error, not a runtime fallback.
func NewManager(cfg Config, logger *logging.Logger, metrics *Metrics) (*Manager, error) {
	if !cfg.Enabled {
		return newManager(cfg, nil, logger, metrics), nil
	}

	params := storage.Params{Capacity: cfg.Capacity, FillRate: cfg.FillRate}

	var (
		backend storage.Backend
		err     error
	)
	switch cfg.Strategy {
	case StrategyLocal:
		backend, err = storage.NewMemoryBackend(params, cfg.Expired)
	case StrategyShared:
		if cfg.SharedPath == "" {
			return nil, fmt.Errorf("shared strategy requires a backend path")
		}
		backend, err = storage.NewSQLiteBackend(cfg.SharedPath, params, cfg.Expired)
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q (expected %q or %q)",
			cfg.Strategy, StrategyLocal, StrategyShared)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s rate limit backend: %w", cfg.Strategy, err)
	}

	return NewManagerWithBackend(cfg, backend, logger, metrics), nil
}

// NewManagerWithBackend builds a manager around an existing backend.
// Used by NewManager and by tests that inject a backend.
func NewManagerWithBackend(cfg Config, backend storage.Backend, logger *logging.Logger, metrics *Metrics) *Manager {
	m := newManager(cfg, backend, logger, metrics)
	go m.sweepLoop()
	return m
}

func newManager(cfg Config, backend storage.Backend, logger *logging.Logger, metrics *Metrics) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		enabled:  cfg.Enabled,
		strategy: cfg.Strategy,
		expired:  cfg.Expired,
		backend:  backend,
		metrics:  metrics,
		logger:   logger.Component("limits"),
		done:     make(chan struct{}),
	}
}

// Check runs one admission check for key.
//
// A disabled manager admits everything. A backend failure denies the
// request and returns the error so the caller can respond with a server
// error instead of a rate-limit denial; admitting unmetered traffic on a
// broken backend is never an option.
func (m *Manager) Check(ctx context.Context, key string) (ratelimit.CheckResult, error) {
	if m == nil || !m.enabled {
		return ratelimit.CheckResult{Allowed: true}, nil
	}

	start := time.Now()
	res, err := m.backend.Admit(ctx, key)
	if err != nil {
		m.metrics.RecordCheck(m.strategy, outcomeError, time.Since(start))
		m.logger.ErrorContext(ctx, "admission check failed, denying request", "error", err)
		return ratelimit.CheckResult{Reason: ratelimit.ReasonBackendError}, err
	}

	outcome := outcomeAllowed
	if !res.Allowed {
		outcome = outcomeDenied
	}
	m.metrics.RecordCheck(m.strategy, outcome, time.Since(start))
	return res, nil
}

// Enabled reports whether admission control is active.
func (m *Manager) Enabled() bool {
	return m != nil && m.enabled
}

// Strategy returns the configured backend strategy.
func (m *Manager) Strategy() string {
	if m == nil {
		return ""
	}
	return m.strategy
}

// Close stops the sweep loop and the backend. Idempotent.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		if m.backend != nil {
			err = m.backend.Close()
		}
	})
	return err
}

// sweepLoop periodically evicts idle keys and refreshes gauges. Eviction
// is a memory concern only; correctness comes from the backends' lazy
// idle reset on access.
func (m *Manager) sweepLoop() {
	if m.backend == nil {
		return
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			cutoff := time.Now().Add(-m.expired)

			evicted, err := m.backend.Cleanup(ctx, cutoff)
			if err != nil {
				m.logger.Warn("idle bucket sweep failed", "error", err)
			} else {
				m.metrics.RecordEvictions(evicted)
			}

			if size, err := m.backend.Size(ctx); err == nil {
				m.metrics.SetTrackedKeys(size)
			}
			cancel()
		case <-m.done:
			return
		}
	}
}
