// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/slimmermetai/auth-core/internal/handler"
	"github.com/slimmermetai/auth-core/internal/metrics"
	"github.com/slimmermetai/auth-core/internal/middleware"
	"github.com/slimmermetai/auth-core/internal/model"
)

// Use installs the global middleware: request id, request metrics, then the
// request pipeline. A nil Metrics skips instrumentation.
func Use(e *echo.Echo, m *metrics.Metrics, pipeline *middleware.Dispatcher) {
	e.Use(echomw.RequestID())
	if m != nil {
		e.Use(m.Middleware())
	}
	e.Use(pipeline.Middleware())
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", handler.Health)
	e.GET("/api/health", h.Status)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}

// RegisterAuth registers the /api/auth endpoints. Token-issuing operations
// are public; me and login-history need a valid access token. Logout is
// public so a client holding only a refresh token can still end a session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.POST("/verify-email", a.VerifyEmail)

	// Middleware is attached per route: Group.Use would add catch-all
	// routes that answer unknown paths with 401 instead of 404.
	g.GET("/me", a.Me, middleware.RequireAuth())
	g.GET("/login-history", a.LoginHistory, middleware.RequireAuth())
}

// RegisterAdmin registers maintenance endpoints for the admin role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler) {
	g := e.Group("/api/admin")
	g.POST("/tokens/cleanup", a.CleanupTokens, middleware.RequireAuth(), middleware.RequireRole(model.RoleAdmin))
}
