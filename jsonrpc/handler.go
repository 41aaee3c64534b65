package jsonrpc

import "context"

// Handler defines the interface for handling JSON-RPC requests. Transports
// carry request-scoped values such as the session id in the context.
type Handler interface {
	Handle(ctx context.Context, request Request) Response
}
