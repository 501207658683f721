// Package queue defines message payloads exchanged over the message broker
// and the consumer that delivers them.
package queue

import "time"

// EmailKind names the e-mail a consumer should send for an event.
type EmailKind string

const (
	EmailVerification    EmailKind = "verification"
	EmailPasswordReset   EmailKind = "password_reset"
	EmailPasswordChanged EmailKind = "password_changed"
)

// EmailEvent is published whenever the auth flows need to mail a user. It
// carries everything the mailer needs so the consumer never queries the
// primary database.
type EmailEvent struct {
	Kind       EmailKind `json:"kind"`
	UserID     uint64    `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Token      string    `json:"token,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
