package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

const shortIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_-"

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// ShortID returns an n-character URL-safe identifier, used for session ids
// that end up in shared links.
func ShortID(n int) string {
	bytes := make([]byte, n)
	_, _ = rand.Read(bytes)
	out := make([]byte, n)
	for i, b := range bytes {
		out[i] = shortIDAlphabet[int(b)&63]
	}
	return string(out)
}

// NewToken returns an unguessable bearer token.
func NewToken(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
