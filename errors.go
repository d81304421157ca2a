package lockerd

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a username is already registered
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnauthorized is returned when credentials or session are invalid
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
)
