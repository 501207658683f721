package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/slimmermetai/auth-core/internal/config"
)

// CORS answers preflight requests with 204 and decorates the rest with the
// configured Access-Control-* headers.
func CORS(cfg config.SecurityConfig) echo.MiddlewareFunc {
	origins := splitList(cfg.CORSAllowOrigin)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     splitList(cfg.CORSAllowMethods),
		AllowHeaders:     splitList(cfg.CORSAllowHeaders),
		AllowCredentials: origins[0] != "*",
		MaxAge:           86400,
	})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
