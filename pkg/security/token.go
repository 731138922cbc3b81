package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenBytes is the entropy of invitation and password reset tokens
const TokenBytes = 32

// TokenGenerator produces opaque URL-safe tokens
type TokenGenerator func() (string, error)

// NewURLToken returns TokenBytes random bytes encoded as unpadded URL-safe base64
func NewURLToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
