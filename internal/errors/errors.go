// Package errors defines the application error taxonomy.
//
// Every failure the append run can produce is an *AppError carrying one of
// the ErrorType values below, so callers can branch on the class of failure
// (errors.As) without string matching. A closed-market day is deliberately
// not represented here: it is an expected outcome, not an error.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeNetwork covers transport failures and unusable source markup.
	ErrTypeNetwork ErrorType = "NETWORK"
	// ErrTypeFieldMissing means an expected field was absent at its expected position.
	ErrTypeFieldMissing ErrorType = "FIELD_MISSING"
	// ErrTypeFormat means a date or number failed to parse.
	ErrTypeFormat ErrorType = "FORMAT"
	// ErrTypeStoreNotFound means the workbook path does not resolve to a file.
	ErrTypeStoreNotFound ErrorType = "STORE_NOT_FOUND"
	// ErrTypeStoreBusy means the workbook is locked by another process,
	// typically open in Excel. Resolved by operator action, not by retrying.
	ErrTypeStoreBusy ErrorType = "STORE_BUSY"
	// ErrTypeInsufficientHistory means fewer than four completed weeks exist
	// for the rolling-average window.
	ErrTypeInsufficientHistory ErrorType = "INSUFFICIENT_HISTORY"
	// ErrTypeConfig covers invalid or unresolvable configuration.
	ErrTypeConfig ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// TypeOf returns the ErrorType of err, or the empty string for
// non-application errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// Helper functions for common error types

// NewSourceUnavailableError creates a network/markup error for the fetch collaborator
func NewSourceUnavailableError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewFieldMissingError creates an error for a field absent from the source
func NewFieldMissingError(field string) *AppError {
	return NewAppError(ErrTypeFieldMissing, fmt.Sprintf("source did not provide field %q", field), nil).
		WithContext("field", field)
}

// NewFormatError creates a parse error for a raw field value
func NewFormatError(message string, cause error) *AppError {
	return NewAppError(ErrTypeFormat, message, cause)
}

// NewStoreNotFoundError creates an error for a missing workbook
func NewStoreNotFoundError(path string, cause error) *AppError {
	return NewAppError(ErrTypeStoreNotFound, fmt.Sprintf("workbook not found at %s", path), cause).
		WithContext("path", path)
}

// NewStoreBusyError creates an error for a workbook locked by another process
func NewStoreBusyError(path string, cause error) *AppError {
	return NewAppError(ErrTypeStoreBusy, fmt.Sprintf("workbook %s is open in another program; close it and re-run", path), cause).
		WithContext("path", path)
}

// NewInsufficientHistoryError creates an error for a rolling window that
// cannot be bounded by enough completed weeks.
func NewInsufficientHistoryError(found, needed int) *AppError {
	return NewAppError(ErrTypeInsufficientHistory,
		fmt.Sprintf("found %d week boundaries, need %d for the rolling window", found, needed), nil).
		WithContext("boundaries_found", found).
		WithContext("boundaries_needed", needed)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
