// Package errors provides custom error types for the application.
// It defines domain-specific errors with error codes for better error handling and API responses.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

// Error codes for different error categories
const (
	// General errors (1xxx)
	ErrCodeInternal     ErrorCode = "E1000"
	ErrCodeValidation   ErrorCode = "E1001"
	ErrCodeNotFound     ErrorCode = "E1002"
	ErrCodeConflict     ErrorCode = "E1003"
	ErrCodeForbidden    ErrorCode = "E1004"
	ErrCodeUnauthorized ErrorCode = "E1005"

	// Document errors (2xxx)
	ErrCodeDocumentParse    ErrorCode = "E2000"
	ErrCodeDocumentFormat   ErrorCode = "E2001"
	ErrCodeDocumentTooLarge ErrorCode = "E2002"
	ErrCodeFileInUse        ErrorCode = "E2003"
	ErrCodeDocumentStorage  ErrorCode = "E2004"

	// Section and commit errors (3xxx)
	ErrCodeSectionNotFound ErrorCode = "E3000"
	ErrCodeCommitFailed    ErrorCode = "E3001"
	ErrCodeBackupFailed    ErrorCode = "E3002"

	// Job errors (4xxx)
	ErrCodeJobNotFound      ErrorCode = "E4000"
	ErrCodeJobBadTransition ErrorCode = "E4001"
	ErrCodeJobQueueFull     ErrorCode = "E4002"

	// LLM errors (5xxx)
	ErrCodeLLMUpstream      ErrorCode = "E5000"
	ErrCodeLLMTimeout       ErrorCode = "E5001"
	ErrCodeLLMNotConfigured ErrorCode = "E5002"
	ErrCodeLLMBadResponse   ErrorCode = "E5003"

	// Database errors (6xxx)
	ErrCodeDBConnection ErrorCode = "E6000"
	ErrCodeDBMigration  ErrorCode = "E6001"
	ErrCodeDBQuery      ErrorCode = "E6002"

	// Configuration errors (7xxx)
	ErrCodeConfigNotFound   ErrorCode = "E7000"
	ErrCodeConfigInvalid    ErrorCode = "E7001"
	ErrCodeConfigParse      ErrorCode = "E7002"
	ErrCodeJWTSecretInvalid ErrorCode = "E7003"
)

// Exit codes for application startup failures
const (
	// ExitCodeConfigValidation indicates configuration validation failure
	ExitCodeConfigValidation = 2
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

// HTTPStatus returns the HTTP status code for the error
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeSectionNotFound, ErrCodeJobNotFound:
		return http.StatusNotFound
	case ErrCodeValidation, ErrCodeDocumentParse, ErrCodeDocumentFormat, ErrCodeDocumentTooLarge, ErrCodeLLMNotConfigured:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeConflict, ErrCodeJobBadTransition, ErrCodeFileInUse:
		return http.StatusConflict
	case ErrCodeLLMUpstream, ErrCodeLLMBadResponse:
		return http.StatusBadGateway
	case ErrCodeLLMTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeJobQueueFull:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
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

// Common error constructors for convenience

// ErrInternal creates an internal server error
func ErrInternal(message string, err error) *AppError {
	return Wrap(ErrCodeInternal, message, err)
}

// ErrValidation creates a validation error
func ErrValidation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// ErrNotFound creates a not found error
func ErrNotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// ErrUnauthorized creates an unauthorized error
func ErrUnauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

// ErrForbidden creates a forbidden error
func ErrForbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError attempts to convert an error to AppError
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}
