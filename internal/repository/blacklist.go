package repository

import (
	"context"
	"database/sql"
	"time"
)

// BlacklistToken revokes an access token (by hash) until expiresAt, after
// which the row is garbage. Revoking twice is not an error.
func (r *AuthRepo) BlacklistToken(ctx context.Context, tokenHash string, userID uint64, expiresAt time.Time) error {
	var uid sql.NullInt64
	if userID != 0 {
		uid = sql.NullInt64{Int64: int64(userID), Valid: true}
	}
	_, err := r.conn(ctx).ExecContext(ctx,
		"INSERT INTO blacklisted_tokens (token_hash, user_id, expires_at, created_at) VALUES (?,?,?,?)",
		tokenHash, uid, expiresAt.UTC().Truncate(time.Second), r.now())
	if isDuplicateKey(err) {
		return nil
	}
	return err
}

// IsTokenBlacklisted reports whether the token hash has been revoked.
func (r *AuthRepo) IsTokenBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	var n int
	err := r.conn(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM blacklisted_tokens WHERE token_hash=?", tokenHash).Scan(&n)
	return n > 0, err
}
