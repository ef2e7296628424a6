// Package adminauth guards the administrative session listing with a single
// shared password, stored only as a bcrypt hash.
package adminauth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HeaderName carries the plaintext admin password on requests.
const HeaderName = "X-Admin-Password"

var ErrInvalidHash = errors.New("admin password hash is not a bcrypt hash")

// Gate checks admin passwords. The zero Gate is disabled and lets everyone in.
type Gate struct {
	hash []byte
}

// NewGate builds a gate from a bcrypt hash. An empty hash disables the gate.
func NewGate(hash string) (*Gate, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return &Gate{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return &Gate{hash: []byte(hash)}, nil
}

// Enabled reports whether a password is required.
func (g *Gate) Enabled() bool {
	return g != nil && len(g.hash) > 0
}

// Allow reports whether password opens the gate.
func (g *Gate) Allow(password string) bool {
	if !g.Enabled() {
		return true
	}
	if password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(password)) == nil
}

// HashPassword produces a hash suitable for POKER_ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
