// Package session provides server-side session stores keyed by opaque
// tokens, plus the HMAC-signed cookie codec that carries a token to the
// browser.
//
// Sessions bind an authenticated identity to subsequent requests. Expiry is
// absolute from creation: a session lives for the configured lifetime
// regardless of activity, then Get stops returning it.
package session

import (
	"context"
	"time"
)

// Session is the server-side state for one authenticated client.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's absolute lifetime has passed.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store is the session store contract. Get must treat expired sessions as
// absent and must never return another token's session.
type Store interface {
	// Create binds a fresh opaque token to username and returns the session.
	Create(ctx context.Context, username string) (Session, error)

	// Get returns the live session for token, or lockerd.ErrUnauthorized if
	// the token is unknown or the session has expired.
	Get(ctx context.Context, token string) (Session, error)

	// Destroy removes the session for token. Destroying an unknown token is
	// not an error.
	Destroy(ctx context.Context, token string) error
}
