package utils

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password IsStrong accepts.
const MinPasswordLength = 8

// commonPasswords holds lower-cased passwords that satisfy the character
// class rules but are still too common to accept.
var commonPasswords = map[string]struct{}{
	"password1":   {},
	"password12":  {},
	"password123": {},
	"passw0rd":    {},
	"welcome1":    {},
	"welcome123":  {},
	"qwerty123":   {},
	"qwerty1234":  {},
	"letmein1":    {},
	"abc12345":    {},
	"admin123":    {},
	"iloveyou1":   {},
	"monkey123":   {},
	"dragon123":   {},
	"sunshine1":   {},
	"football1":   {},
	"baseball1":   {},
	"princess1":   {},
	"trustno1a":   {},
	"changeme1":   {},
	"zomer2024":   {},
	"wachtwoord1": {},
	"welkom01":    {},
	"welkom123":   {},
}

// PasswordHasher hashes and checks passwords with bcrypt at a fixed cost.
type PasswordHasher struct {
	Cost int
}

// NewPasswordHasher returns a hasher for cost, falling back to
// bcrypt.DefaultCost when cost is outside bcrypt's range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{Cost: cost}
}

// Hash returns the bcrypt hash of plain.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify safely compares bcrypt hash and plain password.
func (h *PasswordHasher) Verify(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NeedsRehash reports whether hash was produced with a different cost than
// the current policy, or is not a bcrypt hash at all.
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.Cost
}

// IsStrong applies the password policy: at least MinPasswordLength
// characters with an upper-case letter, a lower-case letter and a digit,
// and not one of the well-known passwords.
func (h *PasswordHasher) IsStrong(plain string) bool {
	if len([]rune(plain)) < MinPasswordLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return false
	}
	_, common := commonPasswords[strings.ToLower(plain)]
	return !common
}
