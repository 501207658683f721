package model

import "time"

// Reasons recorded with failed login attempts.
const (
	LoginReasonOK            = ""
	LoginReasonUnknownEmail  = "unknown_email"
	LoginReasonWrongPassword = "wrong_password"
	LoginReasonInactive      = "inactive"
	LoginReasonLocked        = "locked"
)

// LoginAttempt is one row of the append-only `login_history` table.
type LoginAttempt struct {
	ID        uint64
	UserID    *uint64 // nil when the e-mail did not match an account
	Email     string
	Success   bool
	IPAddress string
	UserAgent string
	Reason    string
	CreatedAt time.Time
}
