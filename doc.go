// Package lockerd provides a session-authenticated file locker backed by an
// S3-compatible object store.
//
// Each registered user owns a region of the flat object namespace: every
// object key a user can touch is prefixed with their username followed by a
// path separator, so listing and access for one user can never reach another
// user's objects.
//
// # Key Components
//
//   - Service: file operations facade (upload, list, download link, delete)
//     scoped by the per-user key naming convention
//   - ObjectStore: interface to the storage backend (S3-compatible, or a fake
//     in tests)
//   - credstore: pluggable username -> password-hash stores (file, sqlite,
//     postgres, memory)
//   - auth: argon2id credential hashing and verification
//   - session: server-side session stores (memory, redis) with HMAC-signed
//     cookie tokens
//
// # Example Usage
//
//	store, err := s3store.New(ctx, s3cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc := lockerd.NewService(store)
//
//	key, err := svc.Upload(ctx, "alice", "report.pdf", "application/pdf", r)
package lockerd
