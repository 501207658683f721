package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestJWT(t *testing.T) (*JWTService, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	s, err := NewJWTService("test-secret", "")
	require.NoError(t, err)
	return s.WithClock(c.now), c
}

func TestJWT_RoundTrip(t *testing.T) {
	s, _ := newTestJWT(t)

	tok, exp, err := s.Generate(Claims{UserID: 42, Email: "user@test.com", Role: "user"}, 15*time.Minute)
	require.NoError(t, err)
	assert.Len(t, strings.Split(tok, "."), 3)

	c, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), c.UserID)
	assert.Equal(t, "user@test.com", c.Email)
	assert.Equal(t, "user", c.Role)
	assert.Equal(t, "42", c.Subject)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, int64(15*60), c.ExpiresAt.Unix()-c.IssuedAt.Unix())
	assert.True(t, exp.Equal(c.ExpiresAt.Time))

	assert.NotNil(t, s.ValidateToken(tok))
}

func TestJWT_DistinctTokensSameSecond(t *testing.T) {
	s, _ := newTestJWT(t)
	a, _, err := s.Generate(Claims{UserID: 1}, time.Minute)
	require.NoError(t, err)
	b, _, err := s.Generate(Claims{UserID: 1}, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestJWT_TamperingAnyCharacter(t *testing.T) {
	s, _ := newTestJWT(t)
	tok, _, err := s.Generate(Claims{UserID: 7, Email: "t@test.com"}, time.Hour)
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		repl := byte('A')
		if tok[i] == 'A' {
			repl = 'B'
		}
		bad := tok[:i] + string(repl) + tok[i+1:]
		assert.Nil(t, s.ValidateToken(bad), "position %d", i)
	}
}

func TestJWT_Malformed(t *testing.T) {
	s, _ := newTestJWT(t)
	for _, tok := range []string{"", "abc", "a.b", "a.b.c.d"} {
		_, err := s.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenMalformed, tok)
	}
}

func TestJWT_ExpiryBoundary(t *testing.T) {
	s, c := newTestJWT(t)
	tok, _, err := s.Generate(Claims{UserID: 1}, 2*time.Second)
	require.NoError(t, err)

	c.t = c.t.Add(time.Second)
	assert.NotNil(t, s.ValidateToken(tok))

	c.t = c.t.Add(time.Second)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired, "invalid at exactly exp")
}

func TestJWT_WrongSecretAndAlgorithm(t *testing.T) {
	s, _ := newTestJWT(t)
	other, err := NewJWTService("other-secret", "")
	require.NoError(t, err)

	tok, _, err := other.Generate(Claims{UserID: 1}, time.Hour)
	require.NoError(t, err)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenSignature)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.Nil(t, s.ValidateToken(unsigned))
}

func TestJWT_Config(t *testing.T) {
	_, err := NewJWTService("", "")
	assert.Error(t, err)

	s, _ := newTestJWT(t)
	for _, ttl := range []time.Duration{0, -time.Second, 500 * time.Millisecond, 1500 * time.Millisecond} {
		_, _, err = s.Generate(Claims{UserID: 1}, ttl)
		assert.ErrorIs(t, err, ErrInvalidTTL, "ttl %s", ttl)
	}

	tok, exp, err := s.Generate(Claims{UserID: 1}, time.Second)
	require.NoError(t, err)
	c, err := s.Verify(tok)
	require.NoError(t, err, "a one-second token is valid when issued")
	assert.Equal(t, time.Second, exp.Sub(c.IssuedAt.Time))

	tok, _, err = s.Generate(Claims{}, time.Hour)
	require.NoError(t, err)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid, "tokens without a user are rejected")
}

func TestRefreshTokenAndHash(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	rt, err := NewRefreshToken(now, 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.True(t, rt.Exp.Equal(now.Add(24*time.Hour)))

	h := HashToken(rt.Raw)
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken(rt.Raw))
	assert.NotEqual(t, h, HashToken(rt.Raw+"x"))
}
