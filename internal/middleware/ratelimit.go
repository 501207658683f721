package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slimmermetai/auth-core/internal/config"
	"github.com/slimmermetai/auth-core/internal/metrics"
)

// UnknownClient is the bucket for requests that carry no usable address.
const UnknownClient = "unknown"

// RateLimiter limits /api requests per client with a sliding window.
type RateLimiter struct {
	cfg     config.RateLimitConfig
	store   RateLimitStore
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, store RateLimitStore, log *slog.Logger, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{cfg: cfg, store: store, log: log, metrics: m, now: time.Now}
}

// Middleware counts every non-exempt /api/ request. Over the limit it
// answers 429 itself; otherwise the X-RateLimit-* headers are set and the
// request continues. A failing store lets the request through.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	if !rl.cfg.Enabled || rl.store == nil {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !rl.applies(path) {
				return next(c)
			}

			client := ClientKey(c.Request())
			key := rl.cfg.Prefix + ":" + client
			now := rl.now()
			d, err := rl.store.Hit(c.Request().Context(), key, now, rl.cfg.MaxRequests, rl.cfg.Window)
			if err != nil {
				rl.log.Warn("ratelimit: store error, allowing request", "key", key, "err", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.MaxRequests))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if rl.cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}

			if !d.Allowed {
				secs := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				rl.metrics.RecordRateLimited(c.Path())
				if rl.cfg.Debug {
					rl.log.Info("ratelimit: blocked", "key", key, "count", d.Count, "retry_after", secs)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "Rate limit exceeded",
					"message":     fmt.Sprintf("Maximum %d requests per %d seconds allowed", rl.cfg.MaxRequests, int(rl.cfg.Window.Seconds())),
					"retry_after": secs,
					"reset_time":  d.ResetAt.Unix(),
				})
			}
			return next(c)
		}
	}
}

// applies reports whether path is rate limited: API paths that are not
// exempt.
func (rl *RateLimiter) applies(path string) bool {
	for _, p := range rl.cfg.ExemptPaths {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	return strings.HasPrefix(path, "/api/")
}

// ClientKey identifies the caller: X-Real-IP, then the first
// X-Forwarded-For entry, then the peer address, then UnknownClient.
func ClientKey(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return UnknownClient
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
