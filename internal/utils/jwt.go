package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for refresh and blacklisted tokens
	"encoding/hex"  // hex encoding and decoding functions
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

// Token verification failures. Callers that only need a yes/no answer use
// ValidateToken instead.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
)

// ErrInvalidTTL is returned by Generate for a lifetime that is not a positive
// whole number of seconds; exp and iat are second-precision claims.
var ErrInvalidTTL = errors.New("jwt: ttl must be a positive whole number of seconds")

// Claims is the identity carried by an access token.  UserID and Email are
// the application claims; the registered claims hold iat, nbf, exp and jti.
type Claims struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 access tokens.  The clock is
// injectable so expiry can be tested without sleeping.
type JWTService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTService returns a service signing with secret.  An empty secret is
// rejected because every token would then be forgeable.
func NewJWTService(secret, issuer string) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("jwt: empty secret")
	}
	return &JWTService{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// WithClock replaces the time source and returns the service.
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.now = now
	return s
}

// Generate signs claims with iat=now, nbf=now and exp=iat+ttl, all at second
// precision.  A fresh jti is assigned so every token has a distinct hash even
// when two are issued for the same user in the same second.
func (s *JWTService) Generate(c Claims, ttl time.Duration) (string, time.Time, error) {
	if ttl < time.Second || ttl%time.Second != 0 {
		return "", time.Time{}, ErrInvalidTTL
	}
	iat := s.now().UTC().Truncate(time.Second)
	exp := iat.Add(ttl)

	c.IssuedAt = jwt.NewNumericDate(iat)
	c.NotBefore = jwt.NewNumericDate(iat)
	c.ExpiresAt = jwt.NewNumericDate(exp)
	c.ID = uuid.NewString()
	c.Subject = strconv.FormatUint(c.UserID, 10)
	if s.issuer != "" {
		c.Issuer = s.issuer
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses token and checks structure, algorithm, signature and expiry.
// A token is expired from the instant now >= exp.
func (s *JWTService) Verify(token string) (*Claims, error) {
	var c Claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrTokenInvalid
	}
	// exp is exclusive.
	if !s.now().Before(c.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if c.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return &c, nil
}

// ValidateToken is Verify without the reason: nil means the token must not
// be trusted.
func (s *JWTService) ValidateToken(token string) *Claims {
	c, err := s.Verify(token)
	if err != nil {
		return nil
	}
	return c
}

// RefreshToken represents a long-lived opaque token used to obtain new
// access tokens.  Only HashToken(Raw) is stored in the database.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// NewRefreshToken returns a cryptographically secure random token valid
// for ttl from now.
func NewRefreshToken(now time.Time, ttl time.Duration) (RefreshToken, error) {
	raw, err := RandomHex(48) // 48 bytes -> 96 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: now.UTC().Truncate(time.Second).Add(ttl),
	}, nil
}

// HashToken returns the hex SHA-256 of a token.  Refresh tokens and
// blacklisted access tokens are stored by this hash only.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
