package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lockerd/lockerd"
)

var validate = validator.New()

// credentialsRequest is the typed body for register and login.
type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// decodeCredentials parses and validates a credentials body. Missing or
// mistyped fields are rejected before they reach the authenticator.
func decodeCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("decode credentials: %w", lockerd.ErrInvalidInput)
	}

	if err := validate.Struct(&req); err != nil {
		return req, fmt.Errorf("validate credentials: %w", lockerd.ErrInvalidInput)
	}

	return req, nil
}
