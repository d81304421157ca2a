package credstore

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/lockerd/lockerd"
)

// MemStore keeps credentials in an in-memory map. Suitable for tests and
// single-process setups where durability is not needed.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]string
}

// NewMemStore creates an empty in-memory credential store.
func NewMemStore() *MemStore {
	return &MemStore{users: make(map[string]string)}
}

func (s *MemStore) Load(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.users), nil
}

func (s *MemStore) Save(_ context.Context, users map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = maps.Clone(users)
	return nil
}

func (s *MemStore) Find(_ context.Context, username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.users[username]
	if !ok {
		return "", fmt.Errorf("find user %q: %w", username, lockerd.ErrNotFound)
	}

	return hash, nil
}

func (s *MemStore) Add(_ context.Context, username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return fmt.Errorf("add user %q: %w", username, lockerd.ErrAlreadyExists)
	}

	s.users[username] = passwordHash
	return nil
}
