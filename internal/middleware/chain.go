// Package middleware holds the HTTP pipeline: error boundary, CORS, body
// parsing, CSRF, authentication and rate limiting, composed by Dispatcher.
package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/slimmermetai/auth-core/internal/config"
)

// Dispatcher runs an ordered list of middleware in front of a handler. The
// first middleware is the outermost; each one may answer on its own or
// call the next.
type Dispatcher struct {
	chain []echo.MiddlewareFunc
}

func NewDispatcher(mw ...echo.MiddlewareFunc) *Dispatcher {
	return &Dispatcher{chain: append([]echo.MiddlewareFunc(nil), mw...)}
}

// Use appends middleware to the end of the chain (closest to the handler).
func (d *Dispatcher) Use(mw ...echo.MiddlewareFunc) *Dispatcher {
	d.chain = append(d.chain, mw...)
	return d
}

// Len returns the number of middleware in the chain.
func (d *Dispatcher) Len() int { return len(d.chain) }

// Then wraps final in the chain and returns the entry point.
func (d *Dispatcher) Then(final echo.HandlerFunc) echo.HandlerFunc {
	h := final
	for i := len(d.chain) - 1; i >= 0; i-- {
		h = d.chain[i](h)
	}
	return h
}

// Middleware exposes the whole chain as one echo middleware, for e.Use.
func (d *Dispatcher) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc { return d.Then(next) }
}

// Pipeline wires the standard request pipeline.
type Pipeline struct {
	Log      *slog.Logger
	Security config.SecurityConfig
	Verifier TokenVerifier
	Limiter  *RateLimiter
}

// Build returns ErrorHandling → CORS → BodyParsing → CSRF → Authenticate →
// RateLimit. A nil Limiter leaves rate limiting out.
func (p Pipeline) Build() *Dispatcher {
	d := NewDispatcher(
		ErrorHandling(p.Log, p.Security.DisplayErrors),
		CORS(p.Security),
		BodyParsing(),
		CSRF(p.Security),
		Authenticate(p.Verifier),
	)
	if p.Limiter != nil {
		d.Use(p.Limiter.Middleware())
	}
	return d
}
