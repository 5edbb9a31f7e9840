package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/branchline/accounts/internal/identity"
)

// PasswordHasher hashes and verifies secrets with bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, falling back to
// bcrypt.DefaultCost when cost is outside bcrypt's range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted bcrypt hash of plaintext.
func (h *PasswordHasher) Hash(plaintext string) ([]byte, error) {
	if plaintext == "" {
		return nil, ErrPasswordInvalid
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordInvalid
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Verify reports whether plaintext matches hash. Malformed or empty hashes
// simply do not match.
func (h *PasswordHasher) Verify(plaintext string, hash []byte) bool {
	if len(hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// Match checks the permanent password first and falls back to the temporary
// one only when the permanent hash is absent or does not match.
func (h *PasswordHasher) Match(user identity.User, plaintext string) bool {
	if h.Verify(plaintext, user.PasswordHash) {
		return true
	}
	return h.Verify(plaintext, user.TemporaryPasswordHash)
}
