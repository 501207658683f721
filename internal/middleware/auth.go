package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slimmermetai/auth-core/internal/utils"
)

// TokenVerifier checks an access token including revocation. nil claims
// with a nil error mean the token is not acceptable.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*utils.Claims, error)
}

// Authenticate attaches the identity of a valid Bearer token to the
// context. Requests without a token, or with an invalid one, continue
// anonymously; RequireAuth decides whether that is acceptable.
func Authenticate(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c)
			if raw == "" {
				return next(c)
			}
			claims, err := v.VerifyToken(c.Request().Context(), raw)
			if err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}
			if claims != nil {
				c.Set(CtxUserID, claims.UserID)
				c.Set(CtxEmail, claims.Email)
				c.Set(CtxRole, claims.Role)
				c.Set(CtxClaims, claims)
				c.Set(CtxToken, raw)
			}
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous requests with 401. It must run after
// Authenticate.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CurrentClaims(c) == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Unauthorized"})
			}
			return next(c)
		}
	}
}
