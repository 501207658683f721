package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CtxParsedBody holds the decoded request body: the JSON value for JSON
// requests, a map[string]any for form posts.
const CtxParsedBody = "parsed_body"

const maxBodyBytes = 1 << 20

// BodyParsing decodes JSON and url-encoded bodies of POST, PUT, PATCH and
// DELETE requests. Malformed JSON is answered with 400. The raw body is
// restored afterwards so handlers can still c.Bind. Other content types
// pass through untouched.
func BodyParsing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				return next(c)
			}
			mediaType, _, _ := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))

			switch mediaType {
			case echo.MIMEApplicationJSON:
				raw, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes+1))
				if err != nil {
					return err
				}
				if len(raw) > maxBodyBytes {
					return echo.ErrStatusRequestEntityTooLarge
				}
				req.Body = io.NopCloser(bytes.NewReader(raw))
				if len(bytes.TrimSpace(raw)) == 0 {
					c.Set(CtxParsedBody, map[string]any{})
					return next(c)
				}
				var v any
				if err := json.Unmarshal(raw, &v); err != nil {
					return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid JSON"})
				}
				c.Set(CtxParsedBody, v)

			case echo.MIMEApplicationForm:
				raw, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes+1))
				if err != nil {
					return err
				}
				if len(raw) > maxBodyBytes {
					return echo.ErrStatusRequestEntityTooLarge
				}
				req.Body = io.NopCloser(bytes.NewReader(raw))
				if err := req.ParseForm(); err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "Invalid form body")
				}
				form := make(map[string]any, len(req.PostForm))
				for k, vs := range req.PostForm {
					if len(vs) == 1 {
						form[k] = vs[0]
					} else {
						form[k] = vs
					}
				}
				c.Set(CtxParsedBody, form)
			}
			return next(c)
		}
	}
}
