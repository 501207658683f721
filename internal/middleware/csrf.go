package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/slimmermetai/auth-core/internal/config"
)

// CSRF protects state-changing requests with a double-submit cookie. The
// token is read from the X-CSRF-Token header or the csrf_token form field.
// Paths under any of CSRFExcludePaths are skipped; the JSON API
// authenticates with bearer tokens instead of cookies.
func CSRF(cfg config.SecurityConfig) echo.MiddlewareFunc {
	excluded := cfg.CSRFExcludePaths
	return echomw.CSRFWithConfig(echomw.CSRFConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			for _, p := range excluded {
				if strings.HasPrefix(path, p) {
					return true
				}
			}
			return false
		},
		TokenLookup:    "header:X-CSRF-Token,form:csrf_token",
		CookieName:     "csrf_token",
		ContextKey:     "csrf",
		CookiePath:     "/",
		CookieHTTPOnly: false,
		CookieSecure:   cfg.CSRFCookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(_ error, c echo.Context) error {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid CSRF token"})
		},
	})
}
