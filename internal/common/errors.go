package common

import (
	"errors"
	"net/http"
)

// Error codes shared by every handler.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodePersistence  = "PERSISTENCE_ERROR"
	CodeInternal     = "INTERNAL"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeTooLarge     = "PAYLOAD_TOO_LARGE"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NewValidationError reports a malformed or out-of-range request.
func NewValidationError(message string, details any) *AppError {
	return &AppError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest, Details: details}
}

// NewNotFound reports a missing entity. The id is echoed in the details.
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    entity + " not found",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewConflict reports a uniqueness or state conflict.
func NewConflict(message string, err error) *AppError {
	return &AppError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict, Err: err}
}

// NewPersistenceError wraps a storage failure. The cause is never rendered to clients.
func NewPersistenceError(message string, err error) *AppError {
	return &AppError{Code: CodePersistence, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// NewInternal wraps an unexpected failure.
func NewInternal(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "internal error", HTTPStatus: http.StatusInternalServerError, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var target *AppError
	if errors.As(err, &target) {
		return target.Code == code
	}
	return false
}
