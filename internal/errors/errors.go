package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeProcessing    ErrorType = "processing"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates an input validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message, Cause: cause}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeConfiguration, Message: message, Cause: cause}
}

// NewProcessingError creates a processing error
func NewProcessingError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeProcessing, Message: message, Cause: cause}
}

// Validationf formats a validation error without a cause
func Validationf(format string, args ...interface{}) *AppError {
	return NewValidationError(fmt.Sprintf(format, args...), nil)
}

// Configurationf formats a configuration error without a cause
func Configurationf(format string, args ...interface{}) *AppError {
	return NewConfigurationError(fmt.Sprintf(format, args...), nil)
}

// IsType checks if err, or any error it wraps, is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}
