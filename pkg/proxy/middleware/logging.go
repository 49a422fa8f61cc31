package middleware

import (
	"net/http"
	"time"

	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// responseWriter captures the status code and byte count on their way
// through. It forwards Flush so event-stream responses keep streaming
// through the logging layer.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// AccessLog emits one structured log line per completed request.
// Server errors log at error level, client errors at warn, the rest at
// info.
func AccessLog(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	accessLogger := logger.Component("access")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			ctx := r.Context()
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"bytes", rw.bytes,
				"latency_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			}

			switch {
			case rw.statusCode >= 500:
				accessLogger.ErrorContext(ctx, "request completed", fields...)
			case rw.statusCode >= 400:
				accessLogger.WarnContext(ctx, "request completed", fields...)
			default:
				accessLogger.InfoContext(ctx, "request completed", fields...)
			}
		})
	}
}
