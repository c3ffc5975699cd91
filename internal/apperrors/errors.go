// Package apperrors defines the errors returned by the control routes and
// their HTTP mapping.
package apperrors

import (
	"errors"
	"net/http"
)

// ErrorCode is the machine-readable error code in responses.
type ErrorCode string

const (
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError   ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrorCodeDeviceNotResolved ErrorCode = "DEVICE_NOT_RESOLVED"
	ErrorCodeDeviceLost        ErrorCode = "DEVICE_LOST"
	ErrorCodeRemoteRejected    ErrorCode = "REMOTE_REJECTED"
	ErrorCodeHostUnreachable   ErrorCode = "HOST_UNREACHABLE"
	ErrorCodeHostRejected      ErrorCode = "HOST_REJECTED"
	ErrorCodeUpstreamError     ErrorCode = "UPSTREAM_ERROR"
	ErrorCodeReconcileBusy     ErrorCode = "RECONCILE_BUSY"
	ErrorCodeEventNotFound     ErrorCode = "EVENT_NOT_FOUND"
	ErrorCodeAuthTokenExpired  ErrorCode = "AUTH_TOKEN_EXPIRED"
	ErrorCodeAuthTokenInvalid  ErrorCode = "AUTH_TOKEN_INVALID"
)

// ErrorType groups codes into caller-fault, auth and server-side failures.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	ErrorTypeAPIError       ErrorType = "api_error"
	ErrorTypeAuthError      ErrorType = "authentication_error"
)

// Body is the serialized form: {"type", "code", "message", "details"}.
type Body struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AppError carries a response status alongside an optional cause.
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
	Err        error
}

func (err *AppError) Error() string {
	return err.Message
}

func (err *AppError) Unwrap() error {
	return err.Err
}

// Type derives the error type from the status code.
func (err *AppError) Type() ErrorType {
	switch {
	case err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden:
		return ErrorTypeAuthError
	case err.StatusCode >= 400 && err.StatusCode < 500:
		return ErrorTypeInvalidRequest
	default:
		return ErrorTypeAPIError
	}
}

// Body returns the serialized form.
func (err *AppError) Body() Body {
	return Body{
		Type:    err.Type(),
		Code:    string(err.Code),
		Message: err.Message,
		Details: err.Details,
	}
}

func NewAppError(code ErrorCode, message string, statusCode int, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode, Details: details}
}

func NewValidationError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeValidationError, message, http.StatusBadRequest, details)
}

// NewUnauthorizedError defaults to UNAUTHORIZED unless a code is given.
func NewUnauthorizedError(message string, code ...ErrorCode) *AppError {
	errCode := ErrorCodeUnauthorized
	if len(code) > 0 {
		errCode = code[0]
	}
	return NewAppError(errCode, message, http.StatusUnauthorized, nil)
}

func NewNotFoundError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeNotFound, message, http.StatusNotFound, details)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorCodeInternalError, message, http.StatusInternalServerError, nil)
}

// NewUpstreamError reports a failure of the remote control API or the host.
func NewUpstreamError(code ErrorCode, message string, cause error) *AppError {
	appErr := NewAppError(code, message, http.StatusBadGateway, nil)
	appErr.Err = cause
	return appErr
}

// NewUnavailableError reports a dependency that is not ready yet.
func NewUnavailableError(code ErrorCode, message string) *AppError {
	return NewAppError(code, message, http.StatusServiceUnavailable, nil)
}

// EnsureAppError returns err as an AppError. Anything else becomes an
// opaque 500 so internal messages are not leaked.
func EnsureAppError(err error) *AppError {
	if err == nil {
		return NewInternalError("Unknown error")
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("Internal server error")
}
