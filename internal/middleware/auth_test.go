package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimmermetai/auth-core/internal/logging"
	"github.com/slimmermetai/auth-core/internal/utils"
)

type fakeVerifier map[string]*utils.Claims

func (f fakeVerifier) VerifyToken(_ context.Context, token string) (*utils.Claims, error) {
	if token == "explode" {
		return nil, errors.New("blacklist unavailable")
	}
	return f[token], nil
}

func testClaims(id uint64, role string) *utils.Claims {
	return &utils.Claims{UserID: id, Email: "u@test.com", Role: role}
}

func newAuthEcho(v TokenVerifier) *echo.Echo {
	e := echo.New()
	e.Use(ErrorHandling(logging.Discard(), false))
	e.Use(Authenticate(v))
	e.GET("/api/public", func(c echo.Context) error {
		return c.String(http.StatusOK, Identity(c))
	})
	e.GET("/api/private", func(c echo.Context) error {
		cl := CurrentClaims(c)
		return c.JSON(http.StatusOK, echo.Map{"email": cl.Email, "token": c.Get(CtxToken)})
	}, RequireAuth())
	e.GET("/api/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RequireAuth(), RequireRole("admin"))
	return e
}

func get(e *echo.Echo, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate_OptionalIdentity(t *testing.T) {
	e := newAuthEcho(fakeVerifier{"good": testClaims(5, "user")})

	assert.Equal(t, "guest", get(e, "/api/public", "").Body.String())
	assert.Equal(t, "guest", get(e, "/api/public", "Bearer nope").Body.String())
	assert.Equal(t, "guest", get(e, "/api/public", "Basic Zm9vOmJhcg==").Body.String())
	assert.Equal(t, "user:5", get(e, "/api/public", "Bearer good").Body.String())
	assert.Equal(t, "user:5", get(e, "/api/public", "bearer good").Body.String())
}

func TestRequireAuth(t *testing.T) {
	e := newAuthEcho(fakeVerifier{"good": testClaims(5, "user")})

	rec := get(e, "/api/private", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Unauthorized"}`, rec.Body.String())

	rec = get(e, "/api/private", "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"u@test.com","token":"good"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := newAuthEcho(fakeVerifier{"user": testClaims(1, "user"), "admin": testClaims(2, "admin")})

	assert.Equal(t, http.StatusUnauthorized, get(e, "/api/admin", "").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/api/admin", "Bearer user").Code)
	assert.Equal(t, http.StatusNoContent, get(e, "/api/admin", "Bearer admin").Code)
}

func TestAuthenticate_VerifierFaultIs500(t *testing.T) {
	e := newAuthEcho(fakeVerifier{})
	rec := get(e, "/api/public", "Bearer explode")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":true,"message":"Internal Server Error"}`, rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	e := echo.New()
	for header, want := range map[string]string{
		"":             "",
		"Bearer":       "",
		"Bearer ":      "",
		"Bearer abc":   "abc",
		"BEARER  abc ": "abc",
		"Token abc":    "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, header)
		assert.Equal(t, want, BearerToken(e.NewContext(req, nil)), header)
	}
}
