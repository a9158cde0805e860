// Package middleware provides the middleware chain for HTTP handlers.
package middleware

import "net/http"

// Middleware wraps a handler with additional logic.
type Middleware func(http.Handler) http.Handler

// Chain holds an ordered list of middleware.
type Chain struct {
	middleware []Middleware
}

// NewChain creates a new middleware chain.
func NewChain(mw ...Middleware) *Chain {
	return &Chain{middleware: mw}
}

// Use appends middleware to the chain.
func (c *Chain) Use(mw Middleware) {
	c.middleware = append(c.middleware, mw)
}

// Wrap wraps a handler with the middleware chain. Middleware is applied in
// reverse order so the first added runs first.
func (c *Chain) Wrap(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(c.middleware) - 1; i >= 0; i-- {
		wrapped = c.middleware[i](wrapped)
	}
	return wrapped
}
