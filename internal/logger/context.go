package logger

import "context"

// ctxKey keeps the request id value private to this package.
type ctxKey struct{}

// WithRequestID stores a request id for later log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored in ctx, or "" when none is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
