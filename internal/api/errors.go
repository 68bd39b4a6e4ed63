package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/luke-core/internal/gateway"
	"github.com/nerrad567/luke-core/internal/node"
	"github.com/nerrad567/luke-core/internal/session"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeNotConfirmed = "not_confirmed"
	ErrCodeGateway      = "gateway_error"
	ErrCodeUnavailable  = "unavailable"
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
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeActionError maps a session error to a response.
func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, node.ErrNodeNotFound), errors.Is(err, node.ErrResourceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, session.ErrNotConfirmed):
		writeError(w, http.StatusConflict, ErrCodeNotConfirmed, "action requires confirmation")
	case errors.Is(err, session.ErrSelfLink), errors.Is(err, session.ErrInvalidResourceURL):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, gateway.ErrRequestFailed), errors.Is(err, gateway.ErrStatus):
		writeError(w, http.StatusBadGateway, ErrCodeGateway, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
