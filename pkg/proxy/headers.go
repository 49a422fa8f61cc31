package proxy

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/xhd193694/ninja/pkg/auth"
)

// capturedCookieName is the upstream anti-bot cookie the pre-auth proxy
// harvests. The dispatcher attaches it to unofficial-surface requests
// and lets the upstream's refreshed copy flow back to clients.
const capturedCookieName = "_puid"

// hopByHopHeaders are connection-scoped per RFC 9110 section 7.6.1 and
// must never cross the proxy in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// clientAddressHeaders identify the real client to the upstream. The
// gateway terminates the client relationship itself, so these are
// dropped rather than forwarded or appended to.
var clientAddressHeaders = []string{
	"X-Forwarded-For",
	"X-Forwarded-Host",
	"X-Forwarded-Proto",
	"X-Real-Ip",
	"True-Client-Ip",
	"Cf-Connecting-Ip",
	"Cf-Ipcountry",
}

// responseCookieAllowlist names the Set-Cookie values that may flow back
// to clients. Everything else the upstream sets (edge tokens, tracking)
// stays between the gateway and the upstream.
var responseCookieAllowlist = map[string]bool{
	capturedCookieName: true,
	"_account":         true,
}

// copyHeader copies all values from src into dst.
func copyHeader(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// removeHopByHopHeaders strips the fixed hop-by-hop set plus any header
// named by the Connection header itself.
func removeHopByHopHeaders(h http.Header) {
	for _, value := range h.Values("Connection") {
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

// sanitizeRequestHeaders prepares an inbound header set for forwarding:
// hop-by-hop headers go, client address headers go, and the cookie
// header is filtered so gateway-issued credentials never reach the
// upstream.
func sanitizeRequestHeaders(h http.Header) {
	removeHopByHopHeaders(h)
	for _, name := range clientAddressHeaders {
		h.Del(name)
	}
	filterRequestCookies(h)
}

// filterRequestCookies rewrites the Cookie header without the gateway's
// own session cookie and without any stale captured-cookie copy the
// client may still hold; the dispatcher attaches the live capture
// itself.
func filterRequestCookies(h http.Header) {
	if h.Get("Cookie") == "" {
		return
	}

	request := http.Request{Header: h}
	cookies := request.Cookies()
	h.Del("Cookie")

	forwarded := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		if cookie.Name == auth.SessionCookieName || cookie.Name == capturedCookieName {
			continue
		}
		forwarded = append(forwarded, cookie.String())
	}
	if len(forwarded) > 0 {
		h.Set("Cookie", strings.Join(forwarded, "; "))
	}
}

// attachCapturedCookie appends the harvested anti-bot cookie to the
// outbound Cookie header.
func attachCapturedCookie(h http.Header, value string) {
	pair := capturedCookieName + "=" + value
	if existing := h.Get("Cookie"); existing != "" {
		h.Set("Cookie", existing+"; "+pair)
		return
	}
	h.Set("Cookie", pair)
}

// sanitizeResponseHeaders prepares an upstream response header set for
// the client: hop-by-hop headers go, Set-Cookie is reduced to the
// allowlist, and Location URLs pointing back at the upstream are made
// relative so redirects stay on the gateway.
func sanitizeResponseHeaders(h http.Header, upstreamHost string) {
	removeHopByHopHeaders(h)
	filterResponseCookies(h)
	rewriteLocation(h, upstreamHost)
}

func filterResponseCookies(h http.Header) {
	setCookies := h.Values("Set-Cookie")
	if len(setCookies) == 0 {
		return
	}

	h.Del("Set-Cookie")
	for _, raw := range setCookies {
		name, _, found := strings.Cut(raw, "=")
		if found && responseCookieAllowlist[strings.TrimSpace(name)] {
			h.Add("Set-Cookie", raw)
		}
	}
}

func rewriteLocation(h http.Header, upstreamHost string) {
	location := h.Get("Location")
	if location == "" {
		return
	}
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return
	}
	if u.Host == upstreamHost {
		u.Scheme = ""
		u.Host = ""
		h.Set("Location", u.String())
	}
}
