package api

import (
	"encoding/json"
	"net/http"
)

// Error is the envelope returned on every failed request.
type Error struct {
	Success bool   `json:"success"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

// Error codes. The set is closed: every error response carries one of these.
const (
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodeInvalidPayload  = "invalid_payload"
	ErrCodeNotFound        = "not_found"
	ErrCodeMethodNotAllow  = "method_not_allowed"
	ErrCodeInternal        = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Success: false,
		Code:    code,
		Message: message,
	})
}

// writeInvalidPayload writes a 400 error response.
func writeInvalidPayload(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeInvalidPayload, message)
}

// writeUnauthenticated writes a 401 error response.
func writeUnauthenticated(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthenticated, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
