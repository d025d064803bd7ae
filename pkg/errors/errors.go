// Package errors provides custom error types for the application.
// It defines domain-specific errors with error codes so callers can
// classify failures without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents application error codes
type ErrorCode string

// Error codes for different error categories
const (
	// Configuration and startup errors (1xxx)
	ErrCodeConfig     ErrorCode = "E1001" // bad env var, unknown entity, dependency cycle
	ErrCodeValidation ErrorCode = "E1002" // response shape mismatch, malformed document

	// GitHub API errors (2xxx)
	ErrCodeNotFound  ErrorCode = "E2001" // 404 on a lookup
	ErrCodeRateLimit ErrorCode = "E2002" // throttled, retryable
	ErrCodeTransport ErrorCode = "E2003" // network or protocol failure
	ErrCodeConflict  ErrorCode = "E2004" // duplicate label / resource
	ErrCodeFatal     ErrorCode = "E2005" // authentication failure

	// Data errors (3xxx)
	ErrCodeIntegrity ErrorCode = "E3001" // dangling cross-entity reference
	ErrCodeIO        ErrorCode = "E3002" // storage read/write failure
)

// Exit codes for the process
const (
	// ExitCodeOK indicates a fully successful run
	ExitCodeOK = 0

	// ExitCodeFailure indicates a configuration, validation, or run-level
	// failure, including non-fatal per-entity failures
	ExitCodeFailure = 1
)

// AppError represents an application-level error with code and context
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
	Details any       `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// CodeOf returns the ErrorCode carried by err, or "" when err is not an AppError
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound reports whether err classifies as a 404 lookup miss
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsRateLimit reports whether err classifies as a retryable throttle
func IsRateLimit(err error) bool {
	return CodeOf(err) == ErrCodeRateLimit
}

// IsConflict reports whether err classifies as a duplicate-resource conflict
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case ErrCodeFatal, ErrCodeConfig:
		return true
	default:
		return false
	}
}

// Common error constructors for convenience

// ErrConfig creates a configuration error
func ErrConfig(message string) *AppError {
	return New(ErrCodeConfig, message)
}

// ErrValidation creates a validation error
func ErrValidation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// ErrNotFound creates a not found error
func ErrNotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// ErrRateLimit creates a rate-limit error
func ErrRateLimit(message string, err error) *AppError {
	return Wrap(ErrCodeRateLimit, message, err)
}

// ErrTransport creates a transport error
func ErrTransport(message string, err error) *AppError {
	return Wrap(ErrCodeTransport, message, err)
}

// ErrConflict creates a duplicate-resource error
func ErrConflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

// ErrIntegrity creates a dangling-reference error
func ErrIntegrity(message string) *AppError {
	return New(ErrCodeIntegrity, message)
}

// ErrIO creates a storage error
func ErrIO(message string, err error) *AppError {
	return Wrap(ErrCodeIO, message, err)
}

// ErrFatal creates an unrecoverable error (authentication and the like)
func ErrFatal(message string, err error) *AppError {
	return Wrap(ErrCodeFatal, message, err)
}
