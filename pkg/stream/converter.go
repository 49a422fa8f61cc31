package stream

import "strings"

// Converter turns a sequence of full-text snapshots into incremental
// deltas. The upstream conversation stream re-sends the entire message
// text on every event; clients expect only what is new.
//
// For each snapshot: if it extends the previous one, only the suffix is
// emitted; otherwise (upstream regenerated or replaced the text) the
// snapshot is emitted in full. State never crosses streams; use one
// Converter per response.
type Converter struct {
	previous string
}

// NewConverter creates a converter with empty history, so the first
// snapshot is always emitted in full.
func NewConverter() *Converter {
	return &Converter{}
}

// Delta consumes the next snapshot and returns the chunk to emit.
// An unchanged snapshot yields the empty string.
func (c *Converter) Delta(snapshot string) string {
	if strings.HasPrefix(snapshot, c.previous) {
		delta := snapshot[len(c.previous):]
		c.previous = snapshot
		return delta
	}
	c.previous = snapshot
	return snapshot
}

// Previous returns the last snapshot seen.
func (c *Converter) Previous() string {
	return c.previous
}
