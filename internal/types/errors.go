package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a namespaced error code for pipeline errors.
type ErrorCode string

// Authentication error codes
const (
	AUTH_CREDENTIALS_REJECTED ErrorCode = "AUTH_CREDENTIALS_REJECTED"
	AUTH_ENDPOINT_UNREACHABLE ErrorCode = "AUTH_ENDPOINT_UNREACHABLE"
	AUTH_TOKEN_EXPIRED        ErrorCode = "AUTH_TOKEN_EXPIRED"
	AUTH_TOKEN_REJECTED       ErrorCode = "AUTH_TOKEN_REJECTED"
)

// Upstream service error codes
const (
	UPSTREAM_STATUS  ErrorCode = "UPSTREAM_STATUS"
	UPSTREAM_TIMEOUT ErrorCode = "UPSTREAM_TIMEOUT"
	UPSTREAM_NETWORK ErrorCode = "UPSTREAM_NETWORK"
)

// Payload error codes
const (
	PARSE_FAILED      ErrorCode = "PARSE_FAILED"
	VALIDATION_FAILED ErrorCode = "VALIDATION_FAILED"
)

// Startup and configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
	STARTUP_DEPENDENCY_DOWN  ErrorCode = "STARTUP_DEPENDENCY_DOWN"
)

// PipelineError is a structured error with an error code, message, and
// optional cause. It supports error wrapping and a retryability hint so the
// watcher loop can decide what to do at the batch boundary.
type PipelineError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error

	// Status and Body carry the HTTP response for UPSTREAM_STATUS errors.
	Status int
	Body   string
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches PipelineErrors by code.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.Code == pe.Code
	}
	return false
}

// NewError creates a non-retryable PipelineError.
func NewError(code ErrorCode, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// WrapError creates a non-retryable PipelineError wrapping a cause.
func WrapError(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Cause: cause}
}

// NewAuthError creates an error for a rejected or expired bearer token.
// Auth errors are never retried within a batch; the watcher invalidates the
// cached token so the next cycle re-authenticates.
func NewAuthError(message string, cause error) *PipelineError {
	return &PipelineError{Code: AUTH_TOKEN_REJECTED, Message: message, Cause: cause}
}

// NewUpstreamError creates an error for a non-2xx response from a dependent
// service. Retryable at the next poll cycle, not within the batch.
func NewUpstreamError(service string, status int, body string) *PipelineError {
	return &PipelineError{
		Code:      UPSTREAM_STATUS,
		Message:   fmt.Sprintf("%s returned status %d", service, status),
		Retryable: true,
		Status:    status,
		Body:      body,
	}
}

// NewTimeoutError creates a retryable error for an exceeded deadline.
func NewTimeoutError(message string, cause error) *PipelineError {
	return &PipelineError{Code: UPSTREAM_TIMEOUT, Message: message, Retryable: true, Cause: cause}
}

// NewNetworkError creates a retryable error for a failed connection.
func NewNetworkError(message string, cause error) *PipelineError {
	return &PipelineError{Code: UPSTREAM_NETWORK, Message: message, Retryable: true, Cause: cause}
}

// NewParseError creates an error for malformed JSON at the transport level.
func NewParseError(message string, cause error) *PipelineError {
	return &PipelineError{Code: PARSE_FAILED, Message: message, Cause: cause}
}

// NewValidationError creates an error for a well-formed object missing
// required fields. Validation errors apply to a single object, never to a
// whole batch.
func NewValidationError(message string) *PipelineError {
	return &PipelineError{Code: VALIDATION_FAILED, Message: message}
}

// IsRetryable reports whether an error is transient and the operation may
// succeed at the next poll cycle.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Retryable
}

// IsAuth reports whether an error indicates a rejected or expired bearer,
// in which case the cached token for the service should be dropped.
func IsAuth(err error) bool {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Code {
	case AUTH_CREDENTIALS_REJECTED, AUTH_TOKEN_EXPIRED, AUTH_TOKEN_REJECTED:
		return true
	}
	return false
}
