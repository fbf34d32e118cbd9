package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates insufficient permissions
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Pipeline-specific errors

var (
	// ErrUnknownTool indicates a tool name with no registered operation
	ErrUnknownTool = errors.New("unknown tool")

	// ErrPlannerParse indicates the planner returned malformed JSON
	ErrPlannerParse = errors.New("planner response is not valid JSON")

	// ErrUpstream indicates a non-2xx or transport failure from the completion API
	ErrUpstream = errors.New("completion API error")

	// ErrStreamClosed indicates the client stream closed before the terminal event
	ErrStreamClosed = errors.New("event stream closed")
)

// Provider-specific errors

var (
	// ErrProviderNotConfigured indicates a data provider is missing credentials
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrProviderUnavailable indicates a data provider API is unavailable
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimitExceeded indicates API rate limit exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// New creates a new error
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error
func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
