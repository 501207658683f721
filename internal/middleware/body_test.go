package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBodyEcho() *echo.Echo {
	e := echo.New()
	e.Use(BodyParsing())
	h := func(c echo.Context) error {
		var bound struct {
			Email string `json:"email" form:"email"`
		}
		if c.Get(CtxParsedBody) != nil {
			if err := c.Bind(&bound); err != nil {
				return err
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"parsed": c.Get(CtxParsedBody), "bound": bound.Email})
	}
	e.POST("/submit", h)
	e.GET("/submit", h)
	return e
}

func post(e *echo.Echo, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBodyParsing_JSON(t *testing.T) {
	e := newBodyEcho()

	rec := post(e, "application/json; charset=utf-8", `{"email":"a@test.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"parsed":{"email":"a@test.com"},"bound":"a@test.com"}`, rec.Body.String(), "body restored for Bind")

	rec = post(e, echo.MIMEApplicationJSON, `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid JSON"}`, rec.Body.String())
}

func TestBodyParsing_Form(t *testing.T) {
	e := newBodyEcho()
	rec := post(e, echo.MIMEApplicationForm, "email=f%40test.com&tag=a&tag=b")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"parsed":{"email":"f@test.com","tag":["a","b"]},"bound":"f@test.com"}`, rec.Body.String())
}

func TestBodyParsing_PassThrough(t *testing.T) {
	e := newBodyEcho()

	rec := post(e, "text/plain", "{not json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"parsed":null,"bound":""}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
