package middleware

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/labstack/echo/v4"
)

// ErrorHandling is the outermost boundary. It recovers panics and renders
// every error returned by inner layers itself: *echo.HTTPError below 500
// keeps its status, anything else becomes a logged 500. With display on,
// the real message and a stack trace reach the client: the panic site for
// a panic, this boundary for a returned error.
func ErrorHandling(log *slog.Logger, display bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("%v", r)
				}
				err = renderError(c, log, display, fmt.Errorf("panic: %w", perr), debug.Stack())
			}()
			if err := next(c); err != nil {
				var stack []byte
				if display {
					stack = debug.Stack()
				}
				return renderError(c, log, display, err, stack)
			}
			return nil
		}
	}
}

func renderError(c echo.Context, log *slog.Logger, display bool, err error, stack []byte) error {
	req := c.Request()

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		if c.Response().Committed {
			return nil
		}
		return writeError(c, he.Code, httpErrorMessage(he), nil)
	}

	attrs := []any{"method", req.Method, "path", req.URL.Path, "caller", Identity(c), "err", err}
	if stack != nil {
		attrs = append(attrs, "stack", string(stack))
	}
	log.Error("unhandled error", attrs...)

	if c.Response().Committed {
		return nil
	}
	msg := http.StatusText(http.StatusInternalServerError)
	if display {
		msg = err.Error()
	} else {
		stack = nil
	}
	return writeError(c, http.StatusInternalServerError, msg, stack)
}

func writeError(c echo.Context, code int, msg string, stack []byte) error {
	if wantsJSON(c.Request()) {
		body := echo.Map{"error": true, "message": msg}
		if stack != nil {
			body["trace"] = string(stack)
		}
		if c.Request().Method == http.MethodHead {
			return c.NoContent(code)
		}
		return c.JSON(code, body)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%d %s</h1>", code, html.EscapeString(http.StatusText(code)))
	if code >= http.StatusInternalServerError && msg != http.StatusText(code) {
		b.WriteString("<pre>" + html.EscapeString(msg))
		if stack != nil {
			b.WriteString("\n" + html.EscapeString(string(stack)))
		}
		b.WriteString("</pre>")
	} else if code < http.StatusInternalServerError {
		b.WriteString("<p>" + html.EscapeString(msg) + "</p>")
	}
	return c.HTML(code, b.String())
}

func httpErrorMessage(he *echo.HTTPError) string {
	if s, ok := he.Message.(string); ok && s != "" {
		return s
	}
	if e, ok := he.Message.(error); ok {
		return e.Error()
	}
	return http.StatusText(he.Code)
}

// wantsJSON decides the error format from Accept, Content-Type and the
// /api path prefix.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get(echo.HeaderAccept)), "json") ||
		strings.Contains(strings.ToLower(r.Header.Get(echo.HeaderContentType)), "json") ||
		strings.HasPrefix(r.URL.Path, "/api")
}
