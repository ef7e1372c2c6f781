package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/vimqa-core/internal/catalog"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/resolver"
	"github.com/nerrad567/vimqa-core/internal/schema"
	"github.com/nerrad567/vimqa-core/internal/table"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeLocked      = "database_locked"
	ErrCodeUnavailable = "unavailable"
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

// writeDataError maps a data-access error to a response. Driver messages
// are not returned to the client.
func writeDataError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, table.ErrInvalidIdentifier),
		errors.Is(err, table.ErrInvalidValue),
		errors.Is(err, table.ErrEmptyEntry):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, catalog.ErrInvalidTestClass):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, resolver.ErrNoRelation), errors.Is(err, schema.ErrNoPath):
		writeBadRequest(w, "tables are not related")
	case database.IsConstraintError(err):
		writeError(w, http.StatusConflict, ErrCodeConflict, "constraint violation")
	case errors.Is(err, database.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, ErrCodeLocked, "database is locked")
	case errors.Is(err, database.ErrHandle):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "database unavailable")
	default:
		writeInternalError(w, "database error")
	}
}
