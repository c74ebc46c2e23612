// Package handlers provides JSON response helpers shared by HTTP handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Kinded is implemented by errors that carry a stable, client-facing kind
// (e.g. "conflict" or "illegal_transition").
type Kinded interface {
	Kind() string
}

// ErrorResponse is the body written by RespondError.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// RespondJSON writes data as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError logs the error and writes it as a JSON error body.
// Server errors log at Error; client errors log at Warn.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}

	resp := ErrorResponse{Error: err.Error()}

	var k Kinded
	if errors.As(err, &k) {
		resp.Kind = k.Kind()
	}

	RespondJSON(w, status, resp)
}
