package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// statusResponse is the envelope for register/login/logout/upload/delete
// outcomes. The error field is omitted when empty: login failures carry
// only the success flag.
type statusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// linkResponse carries a presigned download URL. A null URL signals link
// generation failure.
type linkResponse struct {
	URL *string `json:"url"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteSuccess writes 200 {"success":true}
func WriteSuccess(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, statusResponse{Success: true})
}

// WriteFailure writes {"success":false} with an optional error message
func WriteFailure(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, statusResponse{Success: false, Error: message})
}
