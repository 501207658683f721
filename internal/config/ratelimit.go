package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig drives the sliding-window limiter in front of /api routes.
type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
	ExemptPaths []string
	Backend     string // "redis" or "memory"
	Prefix      string
	Debug       bool
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		MaxRequests: envInt("RATE_LIMIT_MAX_REQUESTS", 100),
		Window:      envDur("RATE_LIMIT_WINDOW", time.Hour),
		ExemptPaths: envList("RATE_LIMIT_EXEMPT_PATHS", "/api/stripe/webhook,/api/health,/api/status"),
		Backend:     strings.ToLower(envStr("RATE_LIMIT_BACKEND", "redis")),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:       envBool("RATE_LIMIT_DEBUG", false),
	}
	if secs := envInt("RATE_LIMIT_WINDOW_SECONDS", -1); secs > 0 {
		def.Window = time.Duration(secs) * time.Second
	}
	if def.MaxRequests < 1 {
		def.MaxRequests = 1
	}
	if def.Window <= 0 {
		def.Window = time.Hour
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func envList(k, d string) []string {
	var out []string
	for _, p := range strings.Split(envStr(k, d), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
