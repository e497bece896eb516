// Package context carries request and job scoped values between the delivery
// layer and the usecases.
package context

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// KeyRequestID holds the request ID, also copied onto commission jobs.
	KeyRequestID ContextKey = "request_id"

	// KeyJobID holds the ID of the commission job being processed.
	KeyJobID ContextKey = "job_id"

	// HeaderXRequestID is the HTTP header name for request ID.
	HeaderXRequestID = "X-Request-Id"
)

// SetRequestID sets the request ID in echo.Context.
func SetRequestID(c echo.Context, requestID string) {
	c.Set(string(KeyRequestID), requestID)
}

// GetRequestID returns the request ID set by the middleware, or a fresh
// UUID when the chain never ran it.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(string(KeyRequestID)).(string); ok && id != "" {
		return id
	}

	return uuid.NewString()
}

// WithRequestID returns a new context with the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, KeyRequestID, requestID)
}

// GetRequestIDFromContext returns the request ID, or empty string.
func GetRequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, KeyRequestID)
}

// WithJobID returns a new context carrying the queue job ID.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, KeyJobID, jobID)
}

// GetJobIDFromContext returns the queue job ID, or empty string.
func GetJobIDFromContext(ctx context.Context) string {
	return stringValue(ctx, KeyJobID)
}

func stringValue(ctx context.Context, key ContextKey) string {
	v, _ := ctx.Value(key).(string)

	return v
}
