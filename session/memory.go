package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lockerd/lockerd"
)

// MemoryStore keeps sessions in an in-process map. Expired entries are
// dropped lazily on Get.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-memory session store with the given absolute
// session lifetime.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, username string) (Session, error) {
	token, err := NewToken()
	if err != nil {
		return Session{}, err
	}

	now := s.now()
	sess := Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()

	return sess, nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return Session{}, fmt.Errorf("get session: %w", lockerd.ErrUnauthorized)
	}

	if sess.Expired(s.now()) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return Session{}, fmt.Errorf("get session: expired: %w", lockerd.ErrUnauthorized)
	}

	return sess, nil
}

func (s *MemoryStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()

	return nil
}
