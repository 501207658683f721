package config

import "time"

// SecurityConfig groups the settings of the HTTP pipeline that are not tied
// to a single backing service: error display, CORS, CSRF and account lockout.
type SecurityConfig struct {
	DisplayErrors bool // return real error messages and stacks to clients

	CORSAllowOrigin  string
	CORSAllowMethods string
	CORSAllowHeaders string

	CSRFExcludePaths []string
	CSRFCookieSecure bool

	LoginMaxFailed     int           // failed attempts per email before lockout
	LoginLockoutWindow time.Duration // window the failed attempts are counted in
}

// LoadSecurityConfig reads the pipeline settings.  DisplayErrors defaults to
// true outside production so developers see stack traces locally.
func LoadSecurityConfig(cfg Config) SecurityConfig {
	prod := cfg.IsProduction()
	return SecurityConfig{
		DisplayErrors:      envBool("APP_DISPLAY_ERRORS", !prod),
		CORSAllowOrigin:    envStr("CORS_ALLOW_ORIGIN", "*"),
		CORSAllowMethods:   envStr("CORS_ALLOW_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
		CORSAllowHeaders:   envStr("CORS_ALLOW_HEADERS", "Content-Type, Authorization, X-CSRF-Token"),
		CSRFExcludePaths:   envList("CSRF_EXCLUDE_PATHS", "/api,/stripe/webhook,/stripe/checkout"),
		CSRFCookieSecure:   envBool("CSRF_COOKIE_SECURE", prod),
		LoginMaxFailed:     envInt("LOGIN_MAX_FAILED", 5),
		LoginLockoutWindow: envDur("LOGIN_LOCKOUT_WINDOW", time.Hour),
	}
}
