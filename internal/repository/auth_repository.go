package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/slimmermetai/auth-core/internal/database"
	"github.com/slimmermetai/auth-core/internal/model"
)

// AuthRepo persists users, their login history, e-mail tokens and the
// access-token blacklist. Every method runs inside the transaction carried
// by ctx when there is one (see database.WithTx).
type AuthRepo struct {
	DB    *sql.DB
	Clock func() time.Time
}

func NewAuthRepo(db *sql.DB) *AuthRepo { return &AuthRepo{DB: db} }

// now returns the current UTC time truncated to whole seconds, which is the
// precision of the DATETIME columns.
func (r *AuthRepo) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC().Truncate(time.Second)
	}
	return time.Now().UTC().Truncate(time.Second)
}

func (r *AuthRepo) conn(ctx context.Context) database.Executor { return database.Conn(ctx, r.DB) }

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

const userColumns = "id,email,name,password_hash,role,is_active,email_verified_at,last_login_at,created_at,updated_at,deleted_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u                          model.User
		verified, lastLogin, delAt sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive,
		&verified, &lastLogin, &u.CreatedAt, &u.UpdatedAt, &delAt)
	if err != nil {
		return nil, err
	}
	u.EmailVerifiedAt = nullTime(verified)
	u.LastLoginAt = nullTime(lastLogin)
	u.DeletedAt = nullTime(delAt)
	return &u, nil
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// CreateUser inserts a user and returns its ID. The password must already be
// hashed. A duplicate e-mail yields ErrEmailExists.
func (r *AuthRepo) CreateUser(ctx context.Context, name, email, passwordHash, role string) (uint64, error) {
	if passwordHash == "" {
		return 0, errors.New("create user: empty password hash")
	}
	if role == "" {
		role = model.RoleUser
	}
	now := r.now()
	res, err := r.conn(ctx).ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		strings.TrimSpace(name), NormalizeEmail(email), passwordHash, role, true, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// FindUserByEmail fetches a live user by normalized email, or nil.
func (r *AuthRepo) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.conn(ctx).QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND deleted_at IS NULL LIMIT 1",
		NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// FindUserByID fetches a live user by id, or nil.
func (r *AuthRepo) FindUserByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.conn(ctx).QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND deleted_at IS NULL LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// UpdateLastLogin stamps last_login_at.
func (r *AuthRepo) UpdateLastLogin(ctx context.Context, userID uint64) error {
	now := r.now()
	return r.execOne(ctx,
		"UPDATE users SET last_login_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL",
		now, now, userID)
}

// UpdatePassword replaces the stored hash.
func (r *AuthRepo) UpdatePassword(ctx context.Context, userID uint64, passwordHash string) error {
	if passwordHash == "" {
		return errors.New("update password: empty password hash")
	}
	return r.execOne(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=? AND deleted_at IS NULL",
		passwordHash, r.now(), userID)
}

// MarkEmailVerified sets email_verified_at for a user.
func (r *AuthRepo) MarkEmailVerified(ctx context.Context, userID uint64) error {
	now := r.now()
	return r.execOne(ctx,
		"UPDATE users SET email_verified_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL",
		now, now, userID)
}

// SetActive enables or disables logins for a user.
func (r *AuthRepo) SetActive(ctx context.Context, userID uint64, active bool) error {
	return r.execOne(ctx,
		"UPDATE users SET is_active=?, updated_at=? WHERE id=? AND deleted_at IS NULL",
		active, r.now(), userID)
}

// SoftDeleteUser marks a user deleted. The row is kept for the audit trail.
func (r *AuthRepo) SoftDeleteUser(ctx context.Context, userID uint64) error {
	now := r.now()
	return r.execOne(ctx,
		"UPDATE users SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL",
		now, now, userID)
}

// execOne runs an update that must touch exactly one live row.
func (r *AuthRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
