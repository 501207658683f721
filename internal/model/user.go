package model

import "time"

// Role names stored in users.role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Emails are stored lower-cased, PasswordHash is never empty and rows are
// only ever soft-deleted through DeletedAt.
type User struct {
	ID              uint64     // users.id
	Email           string     // users.email
	Name            string     // users.name
	PasswordHash    string     // users.password_hash
	Role            string     // users.role
	IsActive        bool       // users.is_active
	EmailVerifiedAt *time.Time // users.email_verified_at (nullable)
	LastLoginAt     *time.Time // users.last_login_at (nullable)
	CreatedAt       time.Time  // users.created_at
	UpdatedAt       time.Time  // users.updated_at
	DeletedAt       *time.Time // users.deleted_at (nullable)
}

// EmailVerified reports whether the user confirmed their address.
func (u User) EmailVerified() bool { return u.EmailVerifiedAt != nil }

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
