// Package apperror provides structured error handling for the encaissement backend.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by failure kind
const (
	// Infrastructure errors (5xx)
	CodeInternal           = "INTERNAL_ERROR"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"

	// Validation errors (400)
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"

	// CodeDuplicateReference signals a duplicate payment reference number.
	// Unreachable while the counter increment stays atomic; if it fires it is
	// an allocator bug and must be surfaced, never retried.
	CodeDuplicateReference = "DUPLICATE_REFERENCE"
)

// AppError is the standard error type for the backend.
// It implements the error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field names, identifiers, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidIdentifier creates an error for malformed record identifiers (400)
func NewInvalidIdentifier(raw string) *AppError {
	return &AppError{
		Code:       CodeInvalidIdentifier,
		Message:    "malformed identifier",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"id": raw},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewStorageUnavailable wraps a failed storage call (503).
// Callers must not persist a payment without a valid reference number,
// so allocator failures surface through this error.
func NewStorageUnavailable(err error) *AppError {
	return &AppError{
		Code:       CodeStorageUnavailable,
		Message:    "storage unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewDuplicateReference creates an error for a reference number collision (409)
func NewDuplicateReference(refID int64) *AppError {
	return &AppError{
		Code:       CodeDuplicateReference,
		Message:    "duplicate payment reference number",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"refId": refID},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsInvalidIdentifier checks if error is CodeInvalidIdentifier
func IsInvalidIdentifier(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeInvalidIdentifier
	}
	return false
}

// IsValidation checks if error is CodeValidation
func IsValidation(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeValidation
	}
	return false
}

// IsStorageUnavailable checks if error is CodeStorageUnavailable
func IsStorageUnavailable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeStorageUnavailable
	}
	return false
}

// IsDuplicateReference checks if error is CodeDuplicateReference
func IsDuplicateReference(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeDuplicateReference
	}
	return false
}
