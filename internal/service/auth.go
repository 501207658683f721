// Package service holds the auth use cases. Handlers translate HTTP into
// these calls; everything stateful lives in the repositories.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/slimmermetai/auth-core/internal/database"
	"github.com/slimmermetai/auth-core/internal/metrics"
	"github.com/slimmermetai/auth-core/internal/model"
	"github.com/slimmermetai/auth-core/internal/queue"
	"github.com/slimmermetai/auth-core/internal/repository"
	"github.com/slimmermetai/auth-core/internal/utils"
)

// Options tune token lifetimes and the account lockout.
type Options struct {
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	MaxFailed       int           // failed logins tolerated per window; 0 disables lockout
	LockoutWindow   time.Duration // look-back window for MaxFailed
}

func (o *Options) defaults() {
	if o.AccessTTL <= 0 {
		o.AccessTTL = time.Hour
	}
	if o.RefreshTTL <= 0 {
		o.RefreshTTL = 30 * 24 * time.Hour
	}
	if o.VerificationTTL <= 0 {
		o.VerificationTTL = 24 * time.Hour
	}
	if o.ResetTTL <= 0 {
		o.ResetTTL = time.Hour
	}
	if o.LockoutWindow <= 0 {
		o.LockoutWindow = time.Hour
	}
}

// Deps are the collaborators of AuthService.
type Deps struct {
	DB       *sql.DB
	Users    *repository.AuthRepo
	Tokens   *repository.TokenRepo
	Hasher   *utils.PasswordHasher
	JWT      *utils.JWTService
	Notifier Notifier
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	Options  Options
	Clock    func() time.Time
}

// ClientInfo describes the caller for the login audit trail.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// AuthService orchestrates login, registration, token refresh, logout and
// the e-mail token flows.
type AuthService struct {
	db       *sql.DB
	users    *repository.AuthRepo
	tokens   *repository.TokenRepo
	hasher   *utils.PasswordHasher
	jwt      *utils.JWTService
	notifier Notifier
	log      *slog.Logger
	metrics  *metrics.Metrics
	opts     Options
	clock    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(d Deps) *AuthService {
	d.Options.defaults()
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &AuthService{
		db:       d.DB,
		users:    d.Users,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		jwt:      d.JWT,
		notifier: d.Notifier,
		log:      d.Log,
		metrics:  d.Metrics,
		opts:     d.Options,
		clock:    d.Clock,
	}
}

func (s *AuthService) now() time.Time { return s.clock().UTC() }

// Login checks the credentials and issues a token pair. Unknown e-mail,
// wrong password and disabled account all yield the same outcome.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (Result, error) {
	email = repository.NormalizeEmail(email)
	attempt := model.LoginAttempt{Email: email, IPAddress: client.IP, UserAgent: client.UserAgent}

	if s.opts.MaxFailed > 0 {
		n, err := s.users.FailedLoginAttempts(ctx, email, s.now().Add(-s.opts.LockoutWindow))
		if err != nil {
			return Result{}, fmt.Errorf("count failed logins: %w", err)
		}
		if n >= s.opts.MaxFailed {
			attempt.Reason = model.LoginReasonLocked
			s.logAttempt(ctx, attempt)
			s.metrics.RecordAuth("login", string(OutcomeLocked))
			return fail(OutcomeLocked, MsgLocked), nil
		}
	}

	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return Result{}, fmt.Errorf("find user: %w", err)
	}
	switch {
	case u == nil:
		// Burn the same bcrypt time as a real check.
		s.hasher.Verify(password, s.dummy())
		attempt.Reason = model.LoginReasonUnknownEmail
	case !s.hasher.Verify(password, u.PasswordHash):
		attempt.Reason = model.LoginReasonWrongPassword
	case !u.IsActive:
		attempt.Reason = model.LoginReasonInactive
	}
	if attempt.Reason != model.LoginReasonOK {
		if u != nil {
			attempt.UserID = &u.ID
		}
		s.logAttempt(ctx, attempt)
		s.metrics.RecordAuth("login", string(OutcomeInvalidCredentials))
		return fail(OutcomeInvalidCredentials, MsgInvalidCredentials), nil
	}

	attempt.UserID = &u.ID
	attempt.Success = true
	s.logAttempt(ctx, attempt)

	if s.hasher.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u.ID, password)
	}

	var tokens *TokenPair
	err = database.WithTx(ctx, s.db, func(ctx context.Context) error {
		if err := s.users.UpdateLastLogin(ctx, u.ID); err != nil {
			return err
		}
		at := s.now().Truncate(time.Second)
		u.LastLoginAt = &at
		var err error
		tokens, err = s.issueTokens(ctx, u)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("login: %w", err)
	}

	s.metrics.RecordAuth("login", string(OutcomeOK))
	res := ok("Login successful")
	res.Tokens = tokens
	res.User = NewUserView(u)
	return res, nil
}

// Register creates an account, issues tokens and queues the verification
// e-mail. The user row, the verification token and the refresh token are
// written in one transaction.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (Result, error) {
	if !s.hasher.IsStrong(password) {
		s.metrics.RecordAuth("register", string(OutcomeWeakPassword))
		return fail(OutcomeWeakPassword, MsgWeakPassword), nil
	}
	email = repository.NormalizeEmail(email)
	if strings.TrimSpace(name) == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}
	verifyToken, err := utils.RandomHex(32)
	if err != nil {
		return Result{}, err
	}
	verifyExp := s.now().Add(s.opts.VerificationTTL)

	var (
		user   *model.User
		tokens *TokenPair
	)
	err = database.WithTx(ctx, s.db, func(ctx context.Context) error {
		id, err := s.users.CreateUser(ctx, name, email, hash, model.RoleUser)
		if err != nil {
			return err
		}
		if err := s.users.CreateEmailVerificationToken(ctx, id, verifyToken, verifyExp); err != nil {
			return err
		}
		if user, err = s.users.FindUserByID(ctx, id); err != nil {
			return err
		}
		tokens, err = s.issueTokens(ctx, user)
		return err
	})
	if errors.Is(err, repository.ErrEmailExists) {
		s.metrics.RecordAuth("register", string(OutcomeEmailExists))
		return fail(OutcomeEmailExists, MsgEmailExists), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("register: %w", err)
	}

	s.notify(ctx, queue.EmailEvent{
		Kind:      queue.EmailVerification,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Token:     verifyToken,
		ExpiresAt: verifyExp,
	})
	s.metrics.RecordAuth("register", string(OutcomeOK))
	res := ok("Registration successful")
	res.Tokens = tokens
	res.User = NewUserView(user)
	return res, nil
}

// Refresh exchanges a live refresh token for a new access token. The
// refresh token itself is not rotated and stays valid until it expires or
// is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Result, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return fail(OutcomeInvalidToken, MsgInvalidToken), nil
	}
	userID, err := s.tokens.ValidateRefresh(ctx, utils.HashToken(refreshToken))
	if repository.IsNotFound(err) {
		s.metrics.RecordAuth("refresh", string(OutcomeInvalidToken))
		return fail(OutcomeInvalidToken, MsgInvalidToken), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("validate refresh: %w", err)
	}
	u, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("find user: %w", err)
	}
	if u == nil || !u.IsActive {
		s.metrics.RecordAuth("refresh", string(OutcomeInvalidToken))
		return fail(OutcomeInvalidToken, MsgInvalidToken), nil
	}
	access, exp, err := s.jwt.Generate(claimsFor(u), s.opts.AccessTTL)
	if err != nil {
		return Result{}, fmt.Errorf("issue access token: %w", err)
	}
	s.metrics.RecordAuth("refresh", string(OutcomeOK))
	res := ok("Token refreshed")
	res.Tokens = &TokenPair{AccessToken: access, AccessExpiresAt: exp, TokenType: "Bearer"}
	return res, nil
}

// VerifyToken returns the claims of a valid, non-revoked access token and
// nil for anything else. An error means the blacklist could not be read.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*utils.Claims, error) {
	claims := s.jwt.ValidateToken(token)
	if claims == nil {
		return nil, nil
	}
	revoked, err := s.users.IsTokenBlacklisted(ctx, utils.HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return nil, nil
	}
	return claims, nil
}

// Logout blacklists the access token until it expires and revokes the
// refresh token. It always succeeds; failures are only logged.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) Result {
	if claims := s.jwt.ValidateToken(accessToken); claims != nil {
		if err := s.users.BlacklistToken(ctx, utils.HashToken(accessToken), claims.UserID, claims.ExpiresAt.Time); err != nil {
			s.log.Error("logout: blacklist access token", "user_id", claims.UserID, "err", err)
		}
	}
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		if err := s.tokens.RevokeByHash(ctx, utils.HashToken(refreshToken)); err != nil {
			s.log.Error("logout: revoke refresh token", "err", err)
		}
	}
	s.metrics.RecordAuth("logout", string(OutcomeOK))
	return ok(MsgLoggedOut)
}

// CurrentUser loads the user behind verified claims. nil means the account
// no longer exists.
func (s *AuthService) CurrentUser(ctx context.Context, claims *utils.Claims) (*UserView, error) {
	if claims == nil {
		return nil, nil
	}
	u, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return NewUserView(u), nil
}

// ForgotPassword queues a reset link when the address belongs to an active
// account. The result is the same either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (Result, error) {
	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return Result{}, fmt.Errorf("find user: %w", err)
	}
	if u == nil || !u.IsActive {
		return ok(MsgResetRequested), nil
	}
	token, err := utils.RandomHex(32)
	if err != nil {
		return Result{}, err
	}
	exp := s.now().Add(s.opts.ResetTTL)
	if err := s.users.CreatePasswordResetToken(ctx, u.ID, token, exp); err != nil {
		return Result{}, fmt.Errorf("create reset token: %w", err)
	}
	s.notify(ctx, queue.EmailEvent{
		Kind:      queue.EmailPasswordReset,
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Token:     token,
		ExpiresAt: exp,
	})
	s.metrics.RecordAuth("forgot_password", string(OutcomeOK))
	return ok(MsgResetRequested), nil
}

// ResetPassword redeems a reset token: the token is consumed, the hash
// replaced and every refresh token of the user revoked, all or nothing.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (Result, error) {
	if !s.hasher.IsStrong(password) {
		return fail(OutcomeWeakPassword, MsgWeakPassword), nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}

	var rt *model.EmailToken
	err = database.WithTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		if rt, err = s.users.FindPasswordResetToken(ctx, token); err != nil || rt == nil {
			return err
		}
		if err := s.users.MarkEmailTokenUsed(ctx, rt.ID); err != nil {
			return err
		}
		if err := s.users.UpdatePassword(ctx, rt.UserID, hash); err != nil {
			return err
		}
		return s.tokens.RevokeAllForUser(ctx, rt.UserID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		// A concurrent redemption consumed the token first.
		rt = nil
	} else if err != nil {
		return Result{}, fmt.Errorf("reset password: %w", err)
	}
	if rt == nil {
		s.metrics.RecordAuth("reset_password", string(OutcomeInvalidToken))
		return fail(OutcomeInvalidToken, MsgInvalidToken), nil
	}

	s.notify(ctx, queue.EmailEvent{Kind: queue.EmailPasswordChanged, UserID: rt.UserID, Email: rt.Email, Name: rt.Name})
	s.metrics.RecordAuth("reset_password", string(OutcomeOK))
	return ok(MsgPasswordReset), nil
}

// VerifyEmail redeems an e-mail verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (Result, error) {
	u, err := s.users.VerifyEmailToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return Result{}, fmt.Errorf("verify email: %w", err)
	}
	if u == nil {
		return fail(OutcomeInvalidToken, MsgInvalidToken), nil
	}
	res := ok(MsgEmailVerified)
	res.User = NewUserView(u)
	return res, nil
}

// LoginHistory lists the most recent login attempts of a user.
func (s *AuthService) LoginHistory(ctx context.Context, userID uint64, limit int) ([]model.LoginAttempt, error) {
	return s.users.LoginHistory(ctx, userID, limit)
}

// CleanupExpiredTokens garbage-collects expired e-mail tokens, blacklist
// entries and refresh tokens in one transaction.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	var total int64
	err := database.WithTx(ctx, s.db, func(ctx context.Context) error {
		n, err := s.users.DeleteExpiredTokens(ctx)
		if err != nil {
			return err
		}
		m, err := s.tokens.DeleteExpired(ctx)
		if err != nil {
			return err
		}
		total = n + m
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup tokens: %w", err)
	}
	return total, nil
}

// RunCleanup calls CleanupExpiredTokens every interval until ctx is done.
func (s *AuthService) RunCleanup(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.CleanupExpiredTokens(ctx)
			if err != nil {
				s.log.Error("token cleanup failed", "err", err)
				continue
			}
			s.log.Info("token cleanup", "deleted", n)
		}
	}
}

func claimsFor(u *model.User) utils.Claims {
	return utils.Claims{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// issueTokens signs an access token and stores a new refresh token.
func (s *AuthService) issueTokens(ctx context.Context, u *model.User) (*TokenPair, error) {
	access, accessExp, err := s.jwt.Generate(claimsFor(u), s.opts.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.now(), s.opts.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
		TokenType:        "Bearer",
	}, nil
}

// logAttempt is best-effort: a failing audit insert never blocks a login.
func (s *AuthService) logAttempt(ctx context.Context, a model.LoginAttempt) {
	if err := s.users.LogLoginAttempt(ctx, a); err != nil {
		s.log.Warn("log login attempt", "email", a.Email, "err", err)
	}
}

func (s *AuthService) rehash(ctx context.Context, userID uint64, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		s.log.Warn("rehash password", "user_id", userID, "err", err)
	}
}

func (s *AuthService) notify(ctx context.Context, ev queue.EmailEvent) {
	if s.notifier == nil {
		return
	}
	ev.OccurredAt = s.now()
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.log.Warn("queue email event", "kind", ev.Kind, "user_id", ev.UserID, "err", err)
	}
}

// dummy returns a hash to verify against when the e-mail is unknown.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}
