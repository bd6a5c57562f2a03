// Package errors provides the typed error taxonomy shared by all layers.
// Errors cross component boundaries as values carrying a machine-readable
// code; handlers map codes to HTTP statuses, services branch on them.
package errors

import (
	stderr "errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeNoCompleteOffer = "NO_COMPLETE_OFFER"
	ErrCodeInternal        = "INTERNAL"
)

// AppError is the error type returned by every component in this service.
type AppError struct {
	Code    string
	Message string
	Err     error
	// Details carries structured context for user-facing failures,
	// e.g. required vs. held roles on an authorization error.
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with a code and message.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a code and message.
func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// WithDetails attaches structured context and returns the same error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// NotFound creates a NOT_FOUND error for a resource/id pair.
func NotFound(resource, id string) *AppError {
	return Newf(ErrCodeNotFound, "%s not found: %s", resource, id)
}

// InvalidInput creates an INVALID_INPUT error for a named field.
func InvalidInput(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: message,
		Details: map[string]interface{}{"field": field},
	}
}

// Code extracts the error code, defaulting to INTERNAL for foreign errors.
func Code(err error) string {
	var appErr *AppError
	if stderr.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Details extracts structured context, or nil.
func Details(err error) map[string]interface{} {
	var appErr *AppError
	if stderr.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

// Message extracts the user-facing message. Foreign errors are masked with a
// generic message so internal detail never leaks to callers.
func Message(err error) string {
	var appErr *AppError
	if stderr.As(err, &appErr) {
		if appErr.Code == ErrCodeInternal {
			return "internal error"
		}
		return appErr.Message
	}
	return "internal error"
}

// HTTPStatus maps an error code to its HTTP response status.
func HTTPStatus(err error) int {
	switch Code(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeNoCompleteOffer:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
