// Package middleware provides the HTTP wrappers applied to every API
// route: request tracing, same-origin CORS, and per-client rate limiting.
package middleware

import "net/http"

// Middleware wraps an http.HandlerFunc with cross-cutting behavior.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Chain composes middlewares into one. The first argument becomes the
// outermost wrapper, so Chain(a, b)(h) runs a, then b, then h. With no
// middlewares the handler passes through untouched.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
