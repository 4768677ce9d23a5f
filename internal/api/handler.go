// Package api provides HTTP handlers for the Cognify API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashureev/cognify/internal/flow"
)

const maxBodyBytes = 64 << 10

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// statusFor maps flow errors to HTTP status codes. Anything else is a server
// error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, flow.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, flow.ErrOnboardingRequired):
		return http.StatusForbidden
	case errors.Is(err, flow.ErrCapabilityDisabled):
		return http.StatusNotFound
	case errors.Is(err, flow.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
