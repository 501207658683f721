package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRateLimitConfig_Defaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 100, cfg.MaxRequests)
	assert.Equal(t, time.Hour, cfg.Window)
	assert.Equal(t, []string{"/api/stripe/webhook", "/api/health", "/api/status"}, cfg.ExemptPaths)
	assert.Equal(t, "redis", cfg.Backend)
}

func TestLoadRateLimitConfig_Overrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "0")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "30")
	t.Setenv("RATE_LIMIT_EXEMPT_PATHS", " /api/a , ,/api/b")
	t.Setenv("RATE_LIMIT_BACKEND", "MEMORY")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	cfg := LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.MaxRequests, "limit is clamped to at least one request")
	assert.Equal(t, 30*time.Second, cfg.Window)
	assert.Equal(t, []string{"/api/a", "/api/b"}, cfg.ExemptPaths)
	assert.Equal(t, "memory", cfg.Backend)
}

func TestLoadSecurityConfig_ProductionHidesErrors(t *testing.T) {
	assert.True(t, LoadSecurityConfig(Config{Env: "dev"}).DisplayErrors)

	prod := LoadSecurityConfig(Config{Env: "prod"})
	assert.False(t, prod.DisplayErrors)
	assert.True(t, prod.CSRFCookieSecure)
	assert.Equal(t, 5, prod.LoginMaxFailed)

	t.Setenv("APP_DISPLAY_ERRORS", "1")
	assert.True(t, LoadSecurityConfig(Config{Env: "prod"}).DisplayErrors)
}

func TestLoad_SQLiteDoesNotRequireMySQLSettings(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", "file:test.db")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("APP_BASE_URL", "https://slimmermetai.com/")

	cfg := Load()
	require.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "file:test.db", cfg.DBName)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL())
	assert.Equal(t, "https://slimmermetai.com", cfg.BaseURL)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, time.Hour, cfg.CleanupEvery)

	t.Setenv("TOKEN_CLEANUP_INTERVAL", "0")
	assert.Zero(t, Load().CleanupEvery, "zero disables the sweep")
}
