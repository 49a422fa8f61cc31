package preauth

import (
	"bytes"
	"regexp"
)

// sniffBudget is how much of the upstream-to-client stream the cookie
// scan may retain. The Set-Cookie of interest arrives in the first
// response's headers, far inside this window.
const sniffBudget = 64 * 1024

// cookiePattern matches the anti-bot Set-Cookie header in decrypted
// response bytes. Case-insensitive: upstream casing is not ours to
// assume.
var cookiePattern = regexp.MustCompile(`(?i)set-cookie:\s*` + CookieName + `=([^;\r\n]+)`)

// cookieSniffer watches bytes flowing upstream-to-client for the
// anti-bot cookie. It is a passive tap on the relay: bytes pass
// through unmodified, and once the cookie is found (or the budget is
// spent) the sniffer stops retaining anything.
type cookieSniffer struct {
	capture *Capture
	window  []byte
	done    bool
	onFound func()
}

func newCookieSniffer(capture *Capture, onFound func()) *cookieSniffer {
	return &cookieSniffer{capture: capture, onFound: onFound}
}

// Write scans the next chunk. It never fails; the relay's io.Copy
// treats the sniffer as an infallible side channel.
func (s *cookieSniffer) Write(p []byte) (int, error) {
	if s.done {
		return len(p), nil
	}

	s.window = append(s.window, p...)

	if match := cookiePattern.FindSubmatch(s.window); match != nil {
		s.capture.Publish(string(bytes.TrimSpace(match[1])))
		if s.onFound != nil {
			s.onFound()
		}
		s.stop()
		return len(p), nil
	}

	if len(s.window) >= sniffBudget {
		s.stop()
	}
	return len(p), nil
}

func (s *cookieSniffer) stop() {
	s.done = true
	s.window = nil
}
