package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd!", hash)

	assert.True(t, h.Verify("Passw0rd!", hash))
	assert.False(t, h.Verify("Passw0rd?", hash))
	assert.False(t, h.Verify("", hash))
	assert.False(t, h.Verify("Passw0rd!", ""))

	again, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salted")
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	low := NewPasswordHasher(bcrypt.MinCost)
	hash, err := low.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.False(t, low.NeedsRehash(hash))
	assert.True(t, NewPasswordHasher(bcrypt.MinCost+1).NeedsRehash(hash))
	assert.True(t, low.NeedsRehash("plaintext"))
}

func TestNewPasswordHasher_OutOfRangeCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).Cost)
}

func TestPasswordHasher_IsStrong(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	cases := map[string]bool{
		"Passw0rd!":    true,
		"Sl1mmerMetAI": true,
		"Ünïcode9x":    true,
		"123":          false,
		"12345678":     false,
		"abcdefgh":     false,
		"abcdefg1":     false,
		"ABCDEFG1":     false,
		"Abcdefgh":     false,
		"Ab1":          false,
		"Password123":  false,
		"Welkom01":     false,
	}
	for pw, want := range cases {
		assert.Equal(t, want, h.IsStrong(pw), pw)
	}
}
