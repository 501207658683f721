package service

import (
	"time"

	"github.com/slimmermetai/auth-core/internal/model"
)

// Outcome tags the result of an auth operation. Expected failures (wrong
// password, weak password, bad token) are outcomes, not errors.
type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeWeakPassword       Outcome = "weak_password"
	OutcomeEmailExists        Outcome = "email_exists"
	OutcomeLocked             Outcome = "locked"
	OutcomeInvalidToken       Outcome = "invalid_token"
)

// Messages returned to clients.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgWeakPassword       = "Password not strong enough"
	MsgEmailExists        = "Email exists"
	MsgInvalidToken       = "Invalid token"
	MsgLocked             = "Too many failed login attempts"
	MsgLoggedOut          = "Logged out"
	MsgResetRequested     = "If the address is registered, a reset link has been sent"
	MsgPasswordReset      = "Password has been reset"
	MsgEmailVerified      = "Email verified"
)

// TokenPair is handed to the client after login or registration. Refresh
// is empty when only a new access token was issued.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
	TokenType        string    `json:"token_type"`
}

// UserView is the externally visible projection of a user.
type UserView struct {
	ID            uint64     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewUserView drops everything that must not leave the server.
func NewUserView(u *model.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified(),
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}

// Result is what every AuthService operation returns.
type Result struct {
	Success bool
	Outcome Outcome
	Message string
	Tokens  *TokenPair
	User    *UserView
}

func ok(msg string) Result { return Result{Success: true, Outcome: OutcomeOK, Message: msg} }

func fail(o Outcome, msg string) Result { return Result{Outcome: o, Message: msg} }
