package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/slimmermetai/auth-core/internal/model"
)

// LogLoginAttempt appends a row to login_history. The user id is resolved
// from the e-mail so history can be listed per account later.
func (r *AuthRepo) LogLoginAttempt(ctx context.Context, a model.LoginAttempt) error {
	email := NormalizeEmail(a.Email)
	userID := a.UserID
	if userID == nil {
		u, err := r.FindUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u != nil {
			userID = &u.ID
		}
	}
	var uid sql.NullInt64
	if userID != nil {
		uid = sql.NullInt64{Int64: int64(*userID), Valid: true}
	}
	_, err := r.conn(ctx).ExecContext(ctx,
		"INSERT INTO login_history (user_id, email, success, ip_address, user_agent, reason, created_at) VALUES (?,?,?,?,?,?,?)",
		uid, email, a.Success, a.IPAddress, truncate(a.UserAgent, 512), a.Reason, r.now())
	return err
}

// FailedLoginAttempts counts failed attempts for email at or after since.
// Attempts refused by the lockout itself are not counted.
func (r *AuthRepo) FailedLoginAttempts(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM login_history WHERE email=? AND success=? AND reason<>? AND created_at>=?",
		NormalizeEmail(email), false, model.LoginReasonLocked, since.UTC().Truncate(time.Second)).Scan(&n)
	return n, err
}

// LoginHistory lists the latest attempts of a user, newest first.
func (r *AuthRepo) LoginHistory(ctx context.Context, userID uint64, limit int) ([]model.LoginAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := r.conn(ctx).QueryContext(ctx,
		"SELECT id, user_id, email, success, ip_address, user_agent, reason, created_at FROM login_history WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LoginAttempt
	for rows.Next() {
		var (
			a   model.LoginAttempt
			uid sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &uid, &a.Email, &a.Success, &a.IPAddress, &a.UserAgent, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		if uid.Valid {
			v := uint64(uid.Int64)
			a.UserID = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
