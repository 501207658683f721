package middleware

// identity.go defines the context keys Authenticate fills and the helpers
// handlers use to read them back.

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/slimmermetai/auth-core/internal/utils"
)

// Context keys set by Authenticate.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
	CtxClaims = "claims"
	CtxToken  = "token"
)

// CurrentClaims returns the verified claims of the request, or nil for an
// anonymous request.
func CurrentClaims(c echo.Context) *utils.Claims {
	cl, _ := c.Get(CtxClaims).(*utils.Claims)
	return cl
}

// UserID returns the authenticated user id.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxUserID).(uint64)
	return id, ok && id != 0
}

// Identity names the caller for logs: "user:<id>" or "guest".
func Identity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + strconv.FormatUint(id, 10)
	}
	return "guest"
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}
