// Package errors provides the structured error type used across the WinForge
// build pipeline, with a two-tier taxonomy: fatal errors abort a build,
// recoverable ones are logged and the build continues.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAssembly   ErrorType = "assembly"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeImaging    ErrorType = "imaging"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// ForgeError is a structured error type with context.
type ForgeError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Path        string
	Recoverable bool
}

// Error implements the error interface.
func (e *ForgeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by type and code.
func (e *ForgeError) Is(target error) bool {
	var t *ForgeError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithPath attaches the file path the error concerns.
func (e *ForgeError) WithPath(path string) *ForgeError {
	e.Path = path

	return e
}

// Common error codes.
const (
	ErrCodeTemplateNotFound = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeFragmentRead     = "ERR_FRAGMENT_READ"
	ErrCodeOutputWrite      = "ERR_OUTPUT_WRITE"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeToolNotFound     = "ERR_TOOL_NOT_FOUND"
	ErrCodeToolFailed       = "ERR_TOOL_FAILED"
	ErrCodeUnsupportedOS    = "ERR_UNSUPPORTED_OS"
	ErrCodeInjectFailed     = "ERR_INJECT_FAILED"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// NewAssemblyError creates a fatal assembly error.
func NewAssemblyError(code, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeAssembly,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewValidationError creates a recoverable validation error.
func NewValidationError(code, message string) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewImagingError creates an error from an external imaging tool invocation.
func NewImagingError(code, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeImaging,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Wrap wraps an error with additional context, creating a ForgeError if the
// input is not already one.
func Wrap(err error, errType ErrorType, code, message string) *ForgeError {
	if err == nil {
		return nil
	}

	var fe *ForgeError
	if errors.As(err, &fe) {
		return &ForgeError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       fe,
			Path:        fe.Path,
			Recoverable: fe.Recoverable,
		}
	}

	return &ForgeError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation,
	}
}

// WrapIO wraps an error as an I/O error.
func WrapIO(err error, code, message string) *ForgeError {
	fe := Wrap(err, ErrorTypeIO, code, message)
	if fe != nil {
		fe.Recoverable = false
	}
	return fe
}

// WrapImaging wraps an error as an imaging-tool error.
func WrapImaging(err error, code, message string) *ForgeError {
	fe := Wrap(err, ErrorTypeImaging, code, message)
	if fe != nil {
		fe.Recoverable = false
	}
	return fe
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Recoverable
	}

	return false
}

// IsFatal reports whether an error should abort the build.
func IsFatal(err error) bool {
	return err != nil && !IsRecoverable(err)
}
