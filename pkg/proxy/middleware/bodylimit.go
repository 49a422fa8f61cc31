package middleware

import "net/http"

// BodyLimit caps the request body. Reads past the cap fail inside the
// handler with http.MaxBytesError, which the dispatcher's error mapping
// turns into a 413-class rejection before anything reaches the
// upstream. Requests that declare an oversized Content-Length up front
// are refused immediately.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
