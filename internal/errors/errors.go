// Package errors provides custom error types for the fintrack core.
// All service-layer and store-layer errors should use AppError so callers can
// render a specific message (entity, field, constraint) without leaking
// internal details.
package errors

import (
	"fmt"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, structured details, and an
// optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Entity     string `json:"entity,omitempty"`
	Field      string `json:"field,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, ErrNotFound) matches any not-found error regardless of details.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Entity:     sentinel.Entity,
		Field:      sentinel.Field,
		Constraint: sentinel.Constraint,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		Entity:     sentinel.Entity,
		Field:      sentinel.Field,
		Constraint: sentinel.Constraint,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Detailed creates a new AppError carrying the entity, field and constraint
// that caused it. The message is derived from those details.
func Detailed(sentinel *AppError, entity, field, constraint string) *AppError {
	msg := sentinel.Message
	switch {
	case field != "" && constraint != "":
		msg = fmt.Sprintf("%s: %s.%s violates %s", sentinel.Message, entity, field, constraint)
	case field != "":
		msg = fmt.Sprintf("%s: %s.%s", sentinel.Message, entity, field)
	case entity != "":
		msg = fmt.Sprintf("%s: %s", sentinel.Message, entity)
	}
	return &AppError{
		Code:       sentinel.Code,
		Message:    msg,
		Entity:     entity,
		Field:      field,
		Constraint: constraint,
		StatusCode: sentinel.StatusCode,
	}
}

// NotFound returns a not-found error for the named entity.
func NotFound(entity string) *AppError {
	return Detailed(ErrNotFound, entity, "", "")
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Storage errors. These propagate unchanged from the ledger store to callers.
var (
	ErrNotFound            = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrConstraintViolation = &AppError{Code: "CONSTRAINT_VIOLATION", Message: "Constraint violated", StatusCode: http.StatusConflict}
	ErrDependencyExists    = &AppError{Code: "DEPENDENCY_EXISTS", Message: "Resource has dependent records", StatusCode: http.StatusConflict}
	ErrTimeout             = &AppError{Code: "TIMEOUT", Message: "Operation timed out; its outcome is unknown", StatusCode: http.StatusGatewayTimeout}
	ErrConflict            = &AppError{Code: "CONFLICT", Message: "Resource was modified concurrently; re-read and retry", StatusCode: http.StatusConflict}
)

// Domain validation errors. These are detected before any write.
var (
	ErrInvalidAmount      = &AppError{Code: "INVALID_AMOUNT", Message: "Invalid amount", StatusCode: http.StatusBadRequest}
	ErrCategoryMismatch   = &AppError{Code: "CATEGORY_MISMATCH", Message: "Category belongs to a different user", StatusCode: http.StatusBadRequest}
	ErrOverAllocation     = &AppError{Code: "OVER_ALLOCATION", Message: "Allocations would exceed the budget amount", StatusCode: http.StatusUnprocessableEntity}
	ErrCategoryTypeLocked = &AppError{Code: "CATEGORY_TYPE_LOCKED", Message: "Category type cannot change while allocations exist", StatusCode: http.StatusConflict}
	ErrInvalidDateRange   = &AppError{Code: "INVALID_DATE_RANGE", Message: "End date must be after start date", StatusCode: http.StatusBadRequest}
)

// User errors.
var (
	ErrDuplicateEmail = &AppError{Code: "CONSTRAINT_VIOLATION", Message: "A user with this email already exists", Entity: "user", Field: "email", Constraint: "unique", StatusCode: http.StatusConflict}
)
