package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lockerd/lockerd"
)

// DefaultCookieName is the session cookie name used by the HTTP layer.
const DefaultCookieName = "lockerd_session"

// CookieCodec signs session tokens into cookie values and verifies them on
// the way back, so a tampered cookie is rejected before any store lookup.
// The cookie value is "<token>.<hex hmac-sha256(secret, token)>".
type CookieCodec struct {
	secret []byte
}

// NewCookieCodec creates a codec signing with the given secret.
func NewCookieCodec(secret string) *CookieCodec {
	return &CookieCodec{secret: []byte(secret)}
}

// Encode returns the signed cookie value for a token.
func (c *CookieCodec) Encode(token string) string {
	return token + "." + hex.EncodeToString(c.sign(token))
}

// Decode verifies a cookie value and returns the embedded token.
func (c *CookieCodec) Decode(value string) (string, error) {
	token, sig, ok := strings.Cut(value, ".")
	if !ok || token == "" {
		return "", fmt.Errorf("decode session cookie: %w", lockerd.ErrUnauthorized)
	}

	got, err := hex.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("decode session cookie: %w", lockerd.ErrUnauthorized)
	}

	if !hmac.Equal(got, c.sign(token)) {
		return "", fmt.Errorf("decode session cookie: bad signature: %w", lockerd.ErrUnauthorized)
	}

	return token, nil
}

func (c *CookieCodec) sign(token string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

// NewCookie builds the session cookie for a signed value. Secure,
// non-scriptable, and sendable cross-site: SameSite=None is required for
// cross-origin use and mandates Secure.
func NewCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

// ExpiredCookie builds a cookie that clears the session cookie on the
// client.
func ExpiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}
