package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthenticated
	ErrForbidden
	ErrRateLimited
	ErrTenantContextMissing
	ErrValidation
	ErrInternal
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`

	// RetryAfter is set on rate-limit errors so callers can surface
	// when the lockout lifts.
	RetryAfter time.Time `json:"retry_after,omitempty"`

	// RequiredPermissions and ActualPermissions are set on permission
	// denials. Only ever populated for authenticated callers.
	RequiredPermissions []string `json:"required_permissions,omitempty"`
	ActualPermissions   []string `json:"actual_permissions,omitempty"`

	// Fields carries field-level validation messages.
	Fields map[string]string `json:"fields,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code onto an HTTP status. Consumed by the
// error-handler middleware.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrTenantContextMissing, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrRateLimited:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// NewUnauthenticated covers missing, invalid, and expired sessions. The
// message is deliberately generic so credential probing learns nothing.
func NewUnauthenticated(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthenticated,
		Message: "authentication required",
		Err:     err,
	}
}

// NewRateLimited signals an active lockout. retryAfter is when the
// sliding window releases the identifier.
func NewRateLimited(message string, retryAfter time.Time) *AppError {
	return &AppError{
		Code:       ErrRateLimited,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// NewForbidden reports a permission denial. The required and actual sets
// are echoed back for diagnosability; callers must only build this for
// authenticated principals.
func NewForbidden(message string, required, actual []string) *AppError {
	return &AppError{
		Code:                ErrForbidden,
		Message:             message,
		RequiredPermissions: required,
		ActualPermissions:   actual,
	}
}

// NewTenantContextMissing enumerates the accepted resolution mechanisms
// so API clients can correct themselves.
func NewTenantContextMissing() *AppError {
	return &AppError{
		Code:    ErrTenantContextMissing,
		Message: "tenant context required: supply an organization subdomain, an X-Tenant-Id header, or authenticate as an organization member",
	}
}

func NewValidation(message string, fields map[string]string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Fields:  fields,
	}
}
