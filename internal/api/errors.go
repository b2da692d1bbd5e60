package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/pinctl-core/internal/command"
	"github.com/nerrad567/pinctl-core/internal/device"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnauthorized     = "unauthorised"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeValidation       = "validation_error"
	ErrCodePersistence      = "persistence_error"
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

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeWriteError maps a create/update failure from the device or command
// layer onto a response. fallback is used for unexpected errors.
func writeWriteError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, device.ErrDuplicateRefID), errors.Is(err, command.ErrDuplicateRefID):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, device.ErrDeviceNotFound), errors.Is(err, command.ErrDeviceMissing):
		writeNotFound(w, "device not found")
	case errors.Is(err, command.ErrCommandNotFound):
		writeNotFound(w, "command not found")
	default:
		writeInternalError(w, fallback)
	}
}

// isValidationError checks whether an error is a device or command
// validation error. Validation wraps specific sentinels, so each is checked.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrInvalidPin) ||
		errors.Is(err, device.ErrInvalidType) ||
		errors.Is(err, device.ErrInvalidRefID) ||
		errors.Is(err, command.ErrInvalidCommand) ||
		errors.Is(err, command.ErrInvalidLabel) ||
		errors.Is(err, command.ErrInvalidAction) ||
		errors.Is(err, command.ErrInvalidValue) ||
		errors.Is(err, command.ErrInvalidRefID)
}
