// Package middleware wraps server-side dispatch with cross-cutting behavior.
// A Middleware decorates a Handler; Chain composes several so the first one
// listed sees the request first.
package middleware

import (
	"context"

	"crpc/describe"
)

// Request is one decoded-enough view of an incoming call: the resolved method
// and its still-encoded argument payload.
type Request struct {
	Method  *describe.Method
	Payload []byte
}

// Handler processes a request and returns the encoded result payload. Void
// and one-way methods return a nil payload.
type Handler func(ctx context.Context, req *Request) ([]byte, error)

// Middleware decorates a Handler.
type Middleware func(next Handler) Handler

// Chain composes middlewares into one. Chain(a, b)(h) runs a outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
