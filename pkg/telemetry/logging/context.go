package logging

import "context"

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// RouteClassKey is the context key for the matched route class
	// (official-dashboard, official-v1, unofficial-backend, unofficial-public).
	RouteClassKey contextKey = "route_class"

	// BucketKeyKey is the context key for the admission-control identity.
	BucketKeyKey contextKey = "bucket_key"

	// UserKey is the context key for the authenticated user id.
	UserKey contextKey = "user"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRouteClass adds the matched route class to the context.
func WithRouteClass(ctx context.Context, class string) context.Context {
	return context.WithValue(ctx, RouteClassKey, class)
}

// GetRouteClass retrieves the route class from the context.
func GetRouteClass(ctx context.Context) string {
	if class, ok := ctx.Value(RouteClassKey).(string); ok {
		return class
	}
	return ""
}

// WithBucketKey adds the admission-control key to the context.
func WithBucketKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, BucketKeyKey, key)
}

// GetBucketKey retrieves the admission-control key from the context.
func GetBucketKey(ctx context.Context) string {
	if key, ok := ctx.Value(BucketKeyKey).(string); ok {
		return key
	}
	return ""
}

// WithUser adds a user identifier to the context.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser retrieves the user identifier from the context.
func GetUser(ctx context.Context) string {
	if user, ok := ctx.Value(UserKey).(string); ok {
		return user
	}
	return ""
}

// extractContextFields collects known context values as alternating
// key/value log args. Absent values are skipped.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	if v := GetRequestID(ctx); v != "" {
		fields = append(fields, string(RequestIDKey), v)
	}
	if v := GetRouteClass(ctx); v != "" {
		fields = append(fields, string(RouteClassKey), v)
	}
	if v := GetBucketKey(ctx); v != "" {
		fields = append(fields, string(BucketKeyKey), v)
	}
	if v := GetUser(ctx); v != "" {
		fields = append(fields, string(UserKey), v)
	}
	return fields
}
