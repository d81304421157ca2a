package lockerd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DownloadLinkTTL is how long a presigned download URL stays valid.
const DownloadLinkTTL = time.Hour

// ObjectStore defines the interface to the storage backend.
// Implementations can target any S3-compatible service; tests use an
// in-memory fake.
//
// All methods accept a context for cancellation and timeout control.
type ObjectStore interface {
	// Put stores content at the given key, overwriting any existing object.
	Put(ctx context.Context, key, contentType string, content io.Reader) error

	// List returns all objects whose keys start with prefix, in
	// backend-returned order.
	List(ctx context.Context, prefix string) ([]Object, error)

	// PresignGet issues a time-limited direct-download URL for key.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
}

// Service is the file operations facade. Every operation is scoped through
// the per-user key naming convention using the identity resolved by the
// session gate, never a caller-supplied username.
type Service struct {
	store ObjectStore
	now   func() time.Time
}

// NewService creates a Service backed by the given object store.
func NewService(store ObjectStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// Upload stores content under a fresh key in the identity's namespace and
// returns the stored filename (the key without the username prefix).
// Backend errors are surfaced to the caller.
func (s *Service) Upload(ctx context.Context, identity, filename, contentType string, content io.Reader) (string, error) {
	if !IsValidFilename(filename) {
		return "", fmt.Errorf("upload %q: %w", filename, ErrInvalidInput)
	}

	key := KeyForUpload(identity, filename, s.now())
	if err := s.store.Put(ctx, key, contentType, content); err != nil {
		return "", fmt.Errorf("upload %q: %w", filename, err)
	}

	return DisplayName(key), nil
}

// List enumerates the display names of all objects in the identity's
// namespace. Backend errors degrade to an empty list; the error is logged
// and returned so the transport can pick a status, but no object names are
// ever produced from a failed listing.
func (s *Service) List(ctx context.Context, identity string) ([]string, error) {
	objects, err := s.store.List(ctx, ListPrefix(identity))
	if err != nil {
		slog.Error("list objects failed", "user", identity, "err", err)
		return []string{}, fmt.Errorf("list objects: %w", err)
	}

	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		names = append(names, DisplayName(obj.Key))
	}

	return names, nil
}

// DownloadLink issues a presigned retrieval URL for a stored file, valid for
// DownloadLinkTTL. Backend errors degrade to an empty URL; the error is
// logged and returned alongside.
func (s *Service) DownloadLink(ctx context.Context, identity, filename string) (string, error) {
	if !IsValidFilename(filename) {
		return "", fmt.Errorf("download link %q: %w", filename, ErrInvalidInput)
	}

	url, err := s.store.PresignGet(ctx, KeyForFile(identity, filename), DownloadLinkTTL)
	if err != nil {
		slog.Error("presign download failed", "user", identity, "file", filename, "err", err)
		return "", fmt.Errorf("download link %q: %w", filename, err)
	}

	return url, nil
}

// Delete removes a stored file from the identity's namespace. Backend
// errors are surfaced to the caller.
func (s *Service) Delete(ctx context.Context, identity, filename string) error {
	if !IsValidFilename(filename) {
		return fmt.Errorf("delete %q: %w", filename, ErrInvalidInput)
	}

	if err := s.store.Delete(ctx, KeyForFile(identity, filename)); err != nil {
		return fmt.Errorf("delete %q: %w", filename, err)
	}

	return nil
}
