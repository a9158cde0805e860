package middleware

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys.
type contextKey int

const requestIDContextKey contextKey = iota

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// GetRequestID returns the request ID from the context, or "" if absent.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

func generateRequestID() string {
	return uuid.NewString()
}
