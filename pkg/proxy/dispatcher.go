package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xhd193694/ninja/pkg/proxy/types"
	"github.com/xhd193694/ninja/pkg/stream"
	"github.com/xhd193694/ninja/pkg/telemetry/logging"
	"github.com/xhd193694/ninja/pkg/upstream"
)

// RouteClass identifies which upstream surface a proxied path belongs
// to. The class decides the upstream base URL and which protections
// (authentication, admission control) the route carries.
type RouteClass string

const (
	// RouteOfficialDashboard covers /dashboard/* on the platform API.
	RouteOfficialDashboard RouteClass = "official-dashboard"

	// RouteOfficialV1 covers /v1/* on the platform API.
	RouteOfficialV1 RouteClass = "official-v1"

	// RouteUnofficialBackend covers /backend-api/* on the web API.
	RouteUnofficialBackend RouteClass = "unofficial-backend"

	// RouteUnofficialPublic covers /public-api/* on the web API. The
	// only proxied class served without credentials.
	RouteUnofficialPublic RouteClass = "unofficial-public"
)

// Classify maps a request path onto its route class. The second return
// is false for paths the dispatcher does not proxy.
func Classify(path string) (RouteClass, bool) {
	switch {
	case strings.HasPrefix(path, "/dashboard/"):
		return RouteOfficialDashboard, true
	case strings.HasPrefix(path, "/v1/"):
		return RouteOfficialV1, true
	case strings.HasPrefix(path, "/backend-api/"):
		return RouteUnofficialBackend, true
	case strings.HasPrefix(path, "/public-api/"):
		return RouteUnofficialPublic, true
	}
	return "", false
}

// Official reports whether the class targets the platform API surface.
func (c RouteClass) Official() bool {
	return c == RouteOfficialDashboard || c == RouteOfficialV1
}

// Protected reports whether the class sits behind the authentication
// and admission-control middleware.
func (c RouteClass) Protected() bool {
	return c != RouteUnofficialPublic
}

// String returns the class name used in logs and metrics labels.
func (c RouteClass) String() string {
	return string(c)
}

// Dispatcher forwards proxied requests to the matched upstream surface.
// It owns header hygiene (hop-by-hop stripping, cookie filtering,
// captured-cookie attachment) and response handling: event-stream
// responses flow through the snapshot-to-delta converter, everything
// else passes through with status and headers preserved.
type Dispatcher struct {
	client  *upstream.Client
	cookies CookieSource
	logger  *logging.Logger
}

// NewDispatcher creates a dispatcher over the shared upstream client.
// A nil cookie source disables captured-cookie attachment.
func NewDispatcher(client *upstream.Client, cookies CookieSource, logger *logging.Logger) (*Dispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if cookies == nil {
		cookies = NoopSource{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		client:  client,
		cookies: cookies,
		logger:  logger.Component("dispatcher"),
	}, nil
}

// Handler returns the http.Handler serving one route class.
func (d *Dispatcher) Handler(class RouteClass) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.dispatch(w, r, class)
	})
}

func (d *Dispatcher) baseURL(class RouteClass) *url.URL {
	if class.Official() {
		return d.client.PlatformURL()
	}
	return d.client.WebURL()
}

func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request, class RouteClass) {
	ctx := r.Context()
	start := time.Now()
	base := d.baseURL(class)

	outbound, err := d.buildUpstreamRequest(r, class, base)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to build upstream request",
			"route_class", class.String(),
			"path", r.URL.Path,
			"error", err,
		)
		d.writeError(w, r, types.NewServerError("an internal error occurred"))
		return
	}

	resp, err := d.client.Do(outbound)
	if err != nil {
		d.logger.ErrorContext(ctx, "upstream request failed",
			"route_class", class.String(),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		d.writeError(w, r, HandleError(err))
		return
	}
	defer resp.Body.Close()

	if isEventStream(resp.Header) {
		d.streamResponse(w, r, resp, class, start)
		return
	}
	d.passthroughResponse(w, r, resp, base.Host, class, start)
}

// buildUpstreamRequest rebinds the inbound request onto the upstream
// base URL. The body is handed over unread so uploads stream straight
// through.
func (d *Dispatcher) buildUpstreamRequest(r *http.Request, class RouteClass, base *url.URL) (*http.Request, error) {
	target := *base
	target.Path = r.URL.Path
	target.RawQuery = r.URL.RawQuery

	outbound, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}
	outbound.ContentLength = r.ContentLength

	copyHeader(outbound.Header, r.Header)
	sanitizeRequestHeaders(outbound.Header)

	if !class.Official() {
		if value, ok := d.cookies.Cookie(); ok {
			attachCapturedCookie(outbound.Header, value)
		}
	}
	if outbound.Header.Get("User-Agent") == "" && d.client.UserAgent() != "" {
		outbound.Header.Set("User-Agent", d.client.UserAgent())
	}
	outbound.Host = base.Host

	return outbound, nil
}

// passthroughResponse relays a non-streaming upstream response with
// status and headers preserved, minus the response-side rewrites.
func (d *Dispatcher) passthroughResponse(w http.ResponseWriter, r *http.Request, resp *http.Response, upstreamHost string, class RouteClass, start time.Time) {
	ctx := r.Context()

	copyHeader(w.Header(), resp.Header)
	sanitizeResponseHeaders(w.Header(), upstreamHost)
	w.WriteHeader(resp.StatusCode)

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		// Headers are already on the wire; all that is left is to note
		// the truncation and let the connection close signal it.
		d.logger.WarnContext(ctx, "response relay interrupted",
			"route_class", class.String(),
			"path", r.URL.Path,
			"bytes_written", written,
			"error", err,
		)
		return
	}

	d.logger.InfoContext(ctx, "request proxied",
		"route_class", class.String(),
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"bytes", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// streamResponse pipes an event-stream response through the converter.
// Conversation events carrying a full-text snapshot are re-emitted as
// incremental chat-completion chunks; any other event (pings,
// moderation results, already-incremental payloads) is relayed
// unmodified.
func (d *Dispatcher) streamResponse(w http.ResponseWriter, r *http.Request, resp *http.Response, class RouteClass, start time.Time) {
	ctx := r.Context()

	SetSSEHeaders(w)
	w.WriteHeader(resp.StatusCode)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	reader := stream.NewReader(resp.Body)
	converter := stream.NewConverter()

	chunkID := ""
	model := ""
	chunksSent := 0

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			d.logger.WarnContext(ctx, "upstream stream failed",
				"route_class", class.String(),
				"chunks_sent", chunksSent,
				"error", err,
			)
			if err := WriteSSEError(w, HandleError(err)); err != nil {
				d.logger.ErrorContext(ctx, "failed to write SSE error", "error", err)
			}
			return
		}

		snapshot, ok := stream.Snapshot(event)
		if !ok {
			if err := WriteSSERaw(w, event); err != nil {
				d.logger.WarnContext(ctx, "client write failed during stream", "error", err)
				return
			}
			continue
		}

		if id := stream.MessageID(event); id != "" {
			chunkID = id
		}
		if chunkID == "" {
			chunkID = newChunkID(ctx)
		}
		if slug := stream.ModelSlug(event); slug != "" {
			model = slug
		}

		if delta := converter.Delta(snapshot); delta != "" {
			if err := WriteSSEChunk(w, types.NewStreamChunk(chunkID, model, delta)); err != nil {
				d.logger.WarnContext(ctx, "client write failed during stream",
					"chunks_sent", chunksSent,
					"error", err,
				)
				return
			}
			chunksSent++
		}

		if stream.EndTurn(event) {
			if err := WriteSSEChunk(w, types.NewStreamStop(chunkID, model, "stop")); err != nil {
				d.logger.WarnContext(ctx, "client write failed during stream", "error", err)
				return
			}
		}

		select {
		case <-ctx.Done():
			d.logger.WarnContext(ctx, "client disconnected during stream",
				"route_class", class.String(),
				"chunks_sent", chunksSent,
			)
			return
		default:
		}
	}

	if err := WriteSSEDone(w); err != nil {
		d.logger.ErrorContext(ctx, "failed to write SSE done marker", "error", err)
	}

	d.logger.InfoContext(ctx, "stream proxied",
		"route_class", class.String(),
		"method", r.Method,
		"path", r.URL.Path,
		"chunks_sent", chunksSent,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// newChunkID derives a stable stream id, preferring the request id so
// chunks correlate with access logs.
func newChunkID(ctx context.Context) string {
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		return "chatcmpl-" + requestID
	}
	return "chatcmpl-" + uuid.NewString()
}

func (d *Dispatcher) writeError(w http.ResponseWriter, r *http.Request, errResp *types.ErrorResponse) {
	if err := WriteErrorResponse(w, errResp); err != nil {
		d.logger.ErrorContext(r.Context(), "failed to write error response", "error", err)
	}
}

func isEventStream(h http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "text/event-stream"
}
