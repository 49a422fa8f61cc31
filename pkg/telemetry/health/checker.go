package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Result is the outcome of one dependency check.
type Result struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Status is the aggregate probe response.
type Status struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]Result `json:"checks,omitempty"`
}

// Checker runs registered dependency checks under a shared timeout.
type Checker struct {
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// New creates a checker. checkTimeout bounds each readiness pass;
// non-positive means 5 seconds.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		timeout: checkTimeout,
		checks:  make(map[string]CheckFunc),
	}
}

// Register adds or replaces a named dependency check.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// Names returns the registered check names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Readiness runs every registered check and aggregates the results.
// One failing dependency fails the whole probe.
func (c *Checker) Readiness(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	status := Status{Healthy: true, Checks: make(map[string]Result, len(checks))}
	for name, check := range checks {
		if err := runCheck(ctx, check); err != nil {
			status.Healthy = false
			status.Checks[name] = Result{Error: err.Error()}
			continue
		}
		status.Checks[name] = Result{Healthy: true}
	}
	return status
}

// runCheck guards an individual check against panics so a broken probe
// reads as unhealthy instead of killing the probe handler.
func runCheck(ctx context.Context, check CheckFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return check(ctx)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return "health check panicked"
}
