package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/slimmermetai/auth-core/internal/database"
	"github.com/slimmermetai/auth-core/internal/model"
)

// CreateEmailToken stores a single-use token mailed to a user.
func (r *AuthRepo) CreateEmailToken(ctx context.Context, userID uint64, token string, typ model.EmailTokenType, expiresAt time.Time) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		"INSERT INTO email_tokens (user_id, token, type, expires_at, created_at) VALUES (?,?,?,?,?)",
		userID, token, string(typ), expiresAt.UTC().Truncate(time.Second), r.now())
	return err
}

// CreateEmailVerificationToken stores a verification token.
func (r *AuthRepo) CreateEmailVerificationToken(ctx context.Context, userID uint64, token string, expiresAt time.Time) error {
	return r.CreateEmailToken(ctx, userID, token, model.EmailTokenVerification, expiresAt)
}

// CreatePasswordResetToken invalidates any unused reset token of the user and
// stores a new one, atomically.
func (r *AuthRepo) CreatePasswordResetToken(ctx context.Context, userID uint64, token string, expiresAt time.Time) error {
	return database.WithTx(ctx, r.DB, func(ctx context.Context) error {
		if _, err := r.conn(ctx).ExecContext(ctx,
			"UPDATE email_tokens SET used_at=? WHERE user_id=? AND type=? AND used_at IS NULL",
			r.now(), userID, string(model.EmailTokenPasswordReset)); err != nil {
			return err
		}
		return r.CreateEmailToken(ctx, userID, token, model.EmailTokenPasswordReset, expiresAt)
	})
}

// findLiveToken returns an unused, unexpired token of the given type, or nil.
func (r *AuthRepo) findLiveToken(ctx context.Context, token string, typ model.EmailTokenType) (*model.EmailToken, error) {
	var (
		t    model.EmailToken
		typs string
		used sql.NullTime
	)
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT et.id, et.user_id, et.token, et.type, et.expires_at, et.used_at, et.created_at, u.email, u.name
		   FROM email_tokens et
		   JOIN users u ON u.id = et.user_id
		  WHERE et.token=? AND et.type=? AND et.expires_at>? AND et.used_at IS NULL AND u.deleted_at IS NULL
		  LIMIT 1`,
		token, string(typ), r.now()).Scan(&t.ID, &t.UserID, &t.Token, &typs, &t.ExpiresAt, &used, &t.CreatedAt, &t.Email, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Type = model.EmailTokenType(typs)
	t.UsedAt = nullTime(used)
	if !t.Usable(r.now()) {
		return nil, nil
	}
	return &t, nil
}

// FindPasswordResetToken returns a redeemable reset token, or nil.
func (r *AuthRepo) FindPasswordResetToken(ctx context.Context, token string) (*model.EmailToken, error) {
	return r.findLiveToken(ctx, token, model.EmailTokenPasswordReset)
}

// MarkEmailTokenUsed sets used_at once; a token that is already used or
// unknown yields ErrNotFound.
func (r *AuthRepo) MarkEmailTokenUsed(ctx context.Context, tokenID uint64) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		"UPDATE email_tokens SET used_at=? WHERE id=? AND used_at IS NULL", r.now(), tokenID)
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

// VerifyEmailToken redeems a verification token: it is marked used and the
// user's email_verified_at is set in one transaction. Returns nil for an
// unknown, used or expired token, including one a concurrent call consumed
// between the lookup and the update.
func (r *AuthRepo) VerifyEmailToken(ctx context.Context, token string) (*model.User, error) {
	var user *model.User
	err := database.WithTx(ctx, r.DB, func(ctx context.Context) error {
		t, err := r.findLiveToken(ctx, token, model.EmailTokenVerification)
		if err != nil || t == nil {
			return err
		}
		if err := r.MarkEmailTokenUsed(ctx, t.ID); err != nil {
			return err
		}
		if err := r.MarkEmailVerified(ctx, t.UserID); err != nil {
			return err
		}
		user, err = r.FindUserByID(ctx, t.UserID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteExpiredTokens removes used or expired e-mail tokens and expired
// blacklist entries, returning the number of rows deleted.
func (r *AuthRepo) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	var total int64
	err := database.WithTx(ctx, r.DB, func(ctx context.Context) error {
		now := r.now()
		for _, q := range []string{
			"DELETE FROM email_tokens WHERE expires_at<? OR used_at IS NOT NULL",
			"DELETE FROM blacklisted_tokens WHERE expires_at<?",
		} {
			res, err := r.conn(ctx).ExecContext(ctx, q, now)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	return total, err
}
