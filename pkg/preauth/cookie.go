package preauth

import "sync"

// CookieName is the upstream anti-bot cookie the proxy watches for.
const CookieName = "_puid"

// Capture is the one-shot publication slot for the harvested cookie:
// written on first sighting, replaced (never appended) by any later
// capture, read by everyone else. It satisfies the dispatcher's
// CookieSource contract.
type Capture struct {
	mu    sync.RWMutex
	value string
	set   bool
	ready chan struct{}
}

// NewCapture creates an empty capture slot.
func NewCapture() *Capture {
	return &Capture{ready: make(chan struct{})}
}

// Cookie returns the captured value and whether one exists yet.
func (c *Capture) Cookie() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}

// Publish stores a captured value. The first publication unblocks
// every Ready waiter; later ones replace the value silently.
func (c *Capture) Publish(value string) {
	if value == "" {
		return
	}
	c.mu.Lock()
	first := !c.set
	c.value = value
	c.set = true
	c.mu.Unlock()

	if first {
		close(c.ready)
	}
}

// Ready returns a channel closed on the first capture. Waiters that
// only care whether a cookie exists yet can select on it.
func (c *Capture) Ready() <-chan struct{} {
	return c.ready
}
