package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/lockerd/lockerd"
)

// FileStore keeps the credential mapping in a single JSON file, read and
// written whole. A mutex serializes every access so a concurrent
// load-modify-save cannot drop a registration.
type FileStore struct {
	mu   sync.Mutex
	path string
	seed lockerd.User
}

// NewFileStore creates a file-backed store at path. The file is created
// lazily on first access, seeded with the given default account.
func NewFileStore(path string, seed lockerd.User) *FileStore {
	return &FileStore{path: path, seed: seed}
}

func (s *FileStore) Load(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked()
}

func (s *FileStore) Save(ctx context.Context, users map[string]string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(users)
}

func (s *FileStore) Find(ctx context.Context, username string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadLocked()
	if err != nil {
		return "", err
	}

	hash, ok := users[username]
	if !ok {
		return "", fmt.Errorf("find user %q: %w", username, lockerd.ErrNotFound)
	}

	return hash, nil
}

func (s *FileStore) Add(ctx context.Context, username, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("add user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadLocked()
	if err != nil {
		return err
	}

	if _, ok := users[username]; ok {
		return fmt.Errorf("add user %q: %w", username, lockerd.ErrAlreadyExists)
	}

	users[username] = passwordHash

	return s.saveLocked(users)
}

// loadLocked reads the backing file, creating it with the seed account if
// it does not exist. Callers must hold s.mu.
func (s *FileStore) loadLocked() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		users := map[string]string{s.seed.Name: s.seed.PasswordHash}
		if err := s.saveLocked(users); err != nil {
			return nil, err
		}
		return users, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var users map[string]string
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse credential file: %w", err)
	}

	return users, nil
}

// saveLocked writes the full mapping via a temp file and rename so a crash
// mid-write never leaves a truncated store. Callers must hold s.mu.
func (s *FileStore) saveLocked(users map[string]string) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write credential file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close credential file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace credential file: %w", err)
	}

	return nil
}
