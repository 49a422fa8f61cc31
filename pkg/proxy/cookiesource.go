package proxy

// CookieSource supplies the anti-bot cookie harvested by the
// pre-authentication proxy. The dispatcher attaches it to requests bound
// for the unofficial upstream surface.
//
// The source is optional capability: when the pre-auth proxy is not
// running, a NoopSource stands in and the dispatcher simply forwards
// without the cookie.
type CookieSource interface {
	// Cookie returns the captured value and whether one has been
	// captured yet. Implementations must be safe for concurrent use.
	Cookie() (string, bool)
}

// NoopSource is a CookieSource that never produces a cookie.
type NoopSource struct{}

// Cookie always reports no capture.
func (NoopSource) Cookie() (string, bool) { return "", false }

// StaticSource serves a fixed cookie value supplied through
// configuration, for deployments that harvest the cookie out of band.
type StaticSource struct {
	Value string
}

// Cookie returns the configured value.
func (s StaticSource) Cookie() (string, bool) {
	return s.Value, s.Value != ""
}
