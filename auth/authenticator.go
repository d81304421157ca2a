package auth

import (
	"context"
	"fmt"

	"github.com/lockerd/lockerd"
	"github.com/lockerd/lockerd/credstore"
)

// Authenticator verifies claimed credentials against a credential store and
// creates new accounts. It never compares plaintext or raw hash equality;
// all verification goes through the argon2id verify path.
type Authenticator struct {
	store credstore.Store
}

// NewAuthenticator creates an Authenticator backed by the given store.
func NewAuthenticator(store credstore.Store) *Authenticator {
	return &Authenticator{store: store}
}

// Register creates a new account and returns its identity. Fails with
// lockerd.ErrAlreadyExists if the username is taken, and with
// lockerd.ErrInvalidInput if the username cannot serve as a key prefix or
// the password is empty. No password-strength policy beyond non-emptiness
// is enforced.
func (a *Authenticator) Register(ctx context.Context, username, password string) (string, error) {
	if !lockerd.IsValidUsername(username) {
		return "", fmt.Errorf("register: username: %w", lockerd.ErrInvalidInput)
	}

	if password == "" {
		return "", fmt.Errorf("register: password: %w", lockerd.ErrInvalidInput)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("register %q: %w", username, err)
	}

	if err := a.store.Add(ctx, username, hash); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	return username, nil
}

// Authenticate verifies a (username, password) pair and returns the
// identity on success. Unknown usernames and wrong passwords both fail with
// lockerd.ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (string, error) {
	hash, err := a.store.Find(ctx, username)
	if err != nil {
		return "", fmt.Errorf("authenticate %q: %w", username, lockerd.ErrUnauthorized)
	}

	match, err := VerifyPassword(password, hash)
	if err != nil || !match {
		return "", fmt.Errorf("authenticate %q: %w", username, lockerd.ErrUnauthorized)
	}

	return username, nil
}
