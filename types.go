package lockerd

import "time"

// User is a credential record: a unique username and the argon2id hash of
// the password. Records are created by registration and never updated or
// deleted afterwards.
type User struct {
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
}

// Object describes a stored object as reported by the storage backend.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
