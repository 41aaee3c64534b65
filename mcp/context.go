package mcp

import "context"

type sessionIDKey struct{}

// WithSessionID binds the session id for a request to its context.
// Transports call this after reading (or minting) the session token.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the session id bound to the context, or the
// empty string if none was bound.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
