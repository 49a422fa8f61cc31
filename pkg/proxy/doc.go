// Package proxy implements the request dispatcher at the heart of the
// gateway: it classifies each inbound path onto an upstream surface,
// rewrites headers, forwards the request over the shared upstream
// client, and relays the response back with streaming conversion where
// appropriate.
//
// # Route Classes
//
// Proxied paths fall into four classes, each bound to one upstream base
// URL:
//
//   - official-dashboard: /dashboard/* → platform API
//   - official-v1:        /v1/*        → platform API
//   - unofficial-backend: /backend-api/* → web API
//   - unofficial-public:  /public-api/*  → web API
//
// All classes except unofficial-public sit behind the authentication
// and admission-control middleware; the dispatcher itself treats every
// class the same way and leaves protection to the route table.
//
// # Header Hygiene
//
// On the way upstream, hop-by-hop headers (RFC 9110 §7.6.1) and client
// address headers (X-Forwarded-For and friends) are stripped, and the
// Cookie header is filtered so the gateway's own session cookie never
// leaves the gateway. Requests bound for the web API additionally carry
// the anti-bot cookie harvested by the pre-auth proxy, when one is
// available through the configured CookieSource.
//
// On the way back, Set-Cookie is reduced to an allowlist and Location
// headers pointing at the upstream host are rewritten to relative URLs
// so redirects stay on the gateway.
//
// # Streaming Conversion
//
// Responses with an event-stream content type are piped through the
// stream package: conversation events carrying a full-text snapshot are
// re-emitted as incremental chat-completion chunks, other events are
// relayed unmodified, and the stream is closed with a [DONE] marker.
//
//	data: {"id":"chatcmpl-...","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hello"}}]}
//	data: {"id":"chatcmpl-...","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":" there"}}]}
//	data: [DONE]
//
// # Error Handling
//
// Failures convert to a JSON error envelope at the boundary: upstream
// connection failures become 502, deadline failures become 408, an
// expired session becomes 307 with a Location header pointing at
// re-authentication, and everything unrecognized becomes a detail-free
// 500:
//
//	{
//	  "error": {
//	    "message": "upstream unreachable",
//	    "type": "bad_gateway"
//	  }
//	}
//
// # Usage
//
//	client, err := upstream.NewClient(upstream.Config{
//	    PlatformBaseURL: "https://api.openai.com",
//	    WebBaseURL:      "https://chat.openai.com",
//	}, logger)
//	if err != nil {
//	    return err
//	}
//
//	dispatcher, err := proxy.NewDispatcher(client, cookieSource, logger)
//	if err != nil {
//	    return err
//	}
//
//	mux.Handle("/backend-api/", dispatcher.Handler(proxy.RouteUnofficialBackend))
//
// # Thread Safety
//
// A Dispatcher is stateless apart from its injected collaborators and
// serves any number of concurrent requests.
package proxy
