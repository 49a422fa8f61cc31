package upstream

import (
	"sync"
	"time"

	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// unhealthyThreshold is the number of consecutive transport failures
// before the upstream is reported unhealthy.
const unhealthyThreshold = 3

// Health is a point-in-time view of upstream connection health, exposed
// through the readiness endpoint.
type Health struct {
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastCheck           time.Time `json:"last_check"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	TotalRequests       uint64    `json:"total_requests"`
	FailedRequests      uint64    `json:"failed_requests"`
}

// healthState tracks request outcomes behind a circuit: the upstream
// starts healthy, turns unhealthy after unhealthyThreshold consecutive
// failures, and recovers on the first success.
type healthState struct {
	mu    sync.RWMutex
	state Health
}

func newHealthState() healthState {
	now := time.Now()
	return healthState{state: Health{
		Healthy:     true, // start optimistic
		LastCheck:   now,
		LastSuccess: now,
	}}
}

func (h *healthState) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	h.state.Healthy = true
	h.state.ConsecutiveFailures = 0
	h.state.LastError = ""
	h.state.LastCheck = now
	h.state.LastSuccess = now
	h.state.TotalRequests++
}

func (h *healthState) recordFailure(err error, logger *logging.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state.ConsecutiveFailures++
	h.state.LastError = err.Error()
	h.state.LastCheck = time.Now()
	h.state.TotalRequests++
	h.state.FailedRequests++

	if h.state.Healthy && h.state.ConsecutiveFailures >= unhealthyThreshold {
		h.state.Healthy = false
		logger.Warn("upstream marked unhealthy",
			"consecutive_failures", h.state.ConsecutiveFailures,
			"error", err,
		)
	}
}

func (h *healthState) healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Healthy
}

func (h *healthState) snapshot() Health {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}
