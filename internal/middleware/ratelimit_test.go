package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimmermetai/auth-core/internal/config"
	"github.com/slimmermetai/auth-core/internal/logging"
)

var t0 = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func TestMemoryStore_SlidingWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	w := 10 * time.Second

	for i := 0; i < 3; i++ {
		d, err := s.Hit(ctx, "k", t0.Add(time.Duration(i)*time.Second), 3, w)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, _ := s.Hit(ctx, "k", t0.Add(5*time.Second), 3, w)
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Count, "rejections are not recorded")
	assert.True(t, d.ResetAt.Equal(t0.Add(w)))

	other, _ := s.Hit(ctx, "other", t0.Add(5*time.Second), 3, w)
	assert.True(t, other.Allowed, "buckets are per key")

	d, _ = s.Hit(ctx, "k", t0.Add(w), 3, w)
	assert.True(t, d.Allowed, "oldest hit left the window")
	assert.Equal(t, 3, d.Count)

	d, _ = s.Hit(ctx, "k", t0.Add(30*time.Second), 3, w)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count, "window fully reset")
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, int, time.Duration) (RateLimitDecision, error) {
	return RateLimitDecision{}, errors.New("redis down")
}

func newLimitedEcho(store RateLimitStore, now *time.Time) *echo.Echo {
	cfg := config.RateLimitConfig{
		Enabled:     true,
		MaxRequests: 2,
		Window:      time.Minute,
		ExemptPaths: []string{"/api/health", "/api/stripe/webhook"},
		Prefix:      "rl",
	}
	rl := NewRateLimiter(cfg, store, logging.Discard(), nil)
	rl.now = func() time.Time { return *now }

	e := echo.New()
	e.Use(rl.Middleware())
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/api/things", ok)
	e.GET("/api/health", ok)
	e.GET("/home", ok)
	return e
}

func hit(e *echo.Echo, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if ip != "" {
		req.Header.Set("X-Real-IP", ip)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	now := t0
	e := newLimitedEcho(NewMemoryStore(), &now)

	rec := hit(e, "/api/things", "1.1.1.1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, strconv.FormatInt(t0.Add(time.Minute).Unix(), 10), rec.Header().Get("X-RateLimit-Reset"))

	now = t0.Add(10 * time.Second)
	require.Equal(t, http.StatusOK, hit(e, "/api/things", "1.1.1.1").Code)

	rec = hit(e, "/api/things", "1.1.1.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "50", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.Equal(t, "Maximum 2 requests per 60 seconds allowed", body["message"])
	assert.Equal(t, float64(50), body["retry_after"])
	assert.Equal(t, float64(t0.Add(time.Minute).Unix()), body["reset_time"])

	assert.Equal(t, http.StatusOK, hit(e, "/api/things", "2.2.2.2").Code, "other clients unaffected")

	now = t0.Add(time.Minute)
	assert.Equal(t, http.StatusOK, hit(e, "/api/things", "1.1.1.1").Code, "window slid")
}

func TestRateLimiter_ExemptAndNonAPIPaths(t *testing.T) {
	now := t0
	e := newLimitedEcho(NewMemoryStore(), &now)
	for i := 0; i < 5; i++ {
		rec := hit(e, "/api/health", "1.1.1.1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, http.StatusOK, hit(e, "/home", "1.1.1.1").Code)
	}
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	now := t0
	e := newLimitedEcho(failingStore{}, &now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(e, "/api/things", "1.1.1.1").Code)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: false, MaxRequests: 1, Window: time.Minute}, NewMemoryStore(), logging.Discard(), nil)
	e := echo.New()
	e.Use(rl.Middleware())
	e.GET("/api/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(e, "/api/x", "").Code)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	assert.Equal(t, "203.0.113.9", ClientKey(req))

	req.Header.Set("X-Forwarded-For", " 198.51.100.7 , 10.0.0.1")
	assert.Equal(t, "198.51.100.7", ClientKey(req))

	req.Header.Set("X-Real-IP", "192.0.2.44")
	assert.Equal(t, "192.0.2.44", ClientKey(req))

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	bare.RemoteAddr = ""
	assert.Equal(t, UnknownClient, ClientKey(bare))
}

// Runs against a real Redis when one is reachable (REDIS_ADDR or
// localhost:6379), otherwise skipped.
func TestRedisStore_SlidingWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	key := "rl-test:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer rdb.Del(context.Background(), key)
	s := NewRedisStore(rdb)
	w := 10 * time.Second

	for i := 0; i < 2; i++ {
		d, err := s.Hit(ctx, key, t0.Add(time.Duration(i)*time.Second), 2, w)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := s.Hit(ctx, key, t0.Add(2*time.Second), 2, w)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, t0.Add(w).UnixMilli(), d.ResetAt.UnixMilli())

	d, err = s.Hit(ctx, key, t0.Add(w), 2, w)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
