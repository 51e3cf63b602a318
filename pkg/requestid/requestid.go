package requestid

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// Header is the header carrying the request id on outgoing calls.
var Header = middleware.RequestIDHeader

// Generate creates a new unique request ID
func Generate() string {
	return uuid.New().String()
}

// ToContext adds a request ID to the context
func ToContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// FromContext extracts the request ID from the context.
// Returns empty string if request ID is not found.
func FromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// Set stamps req with the request id carried by its context, or a fresh one.
func Set(req *http.Request) {
	id := FromContext(req.Context())
	if id == "" {
		id = Generate()
	}
	req.Header.Set(Header, id)
}

// FromRequest returns the request id header of r, or the one in its context.
func FromRequest(r *http.Request) string {
	if id := r.Header.Get(Header); id != "" {
		return id
	}
	return FromContext(r.Context())
}
