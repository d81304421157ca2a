package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenLen is the number of random bytes in a session token.
const tokenLen = 32

// NewToken generates an unguessable opaque session token.
func NewToken() (string, error) {
	buf := make([]byte, tokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
