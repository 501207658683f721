package model

import "time"

// EmailTokenType distinguishes the single-use tokens mailed to users.
type EmailTokenType string

const (
	EmailTokenVerification  EmailTokenType = "verification"
	EmailTokenPasswordReset EmailTokenType = "password_reset"
)

// EmailToken mirrors the `email_tokens` table. A token is usable while
// UsedAt is nil and ExpiresAt lies in the future.
type EmailToken struct {
	ID        uint64
	UserID    uint64
	Token     string
	Type      EmailTokenType
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time

	// Joined from users for convenience.
	Email string
	Name  string
}

// Usable reports whether the token can still be redeemed at now.
func (t EmailToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
