package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeNotAuthorized    ErrorCode = "NOT_AUTHORIZED"
	ErrCodePasswordRequired ErrorCode = "PASSWORD_REQUIRED"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"
	ErrCodeInvalidSession  ErrorCode = "INVALID_SESSION"

	// Resource
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

// NotAuthorized reports a platform session that connected fine but is not
// signed in to an account.
func NotAuthorized(message string) *AppError {
	return New(ErrCodeNotAuthorized, message)
}

func PasswordRequired() *AppError {
	return New(ErrCodePasswordRequired, "Account is protected by a cloud password")
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func SessionNotFound(userID string) *AppError {
	return New(ErrCodeSessionNotFound, "No stored session for user; request a code first").
		WithDetails(map[string]string{"user_id": userID})
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

// MissingFields reports every absent field of a request at once. The message
// names the request's intent so callers can tell which call was rejected.
func MissingFields(intent string, fields []string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s: missing required fields", intent)).
		WithDetails(map[string]any{"missing": fields})
}

func InvalidSession(cause error) *AppError {
	return Wrap(ErrCodeInvalidSession, "Session string is malformed", cause)
}

func RateLimitExceeded(retryAfter int) *AppError {
	return New(ErrCodeRateLimitExceeded, "Too many login attempts. Please try again later.").
		WithDetails(map[string]int{"retry_after": retryAfter})
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// Database wraps a session store failure. Like External, the store's own
// message is surfaced.
func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, cause.Error(), cause)
}

// External wraps an upstream failure. The upstream message is surfaced to the
// client verbatim.
func External(cause error) *AppError {
	return Wrap(ErrCodeExternal, cause.Error(), cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
