package api

import (
	"fmt"
	"net/http"
)

// Error is the whole-request error shape returned by the HTTP boundary.
// Per-model failures never use it; they travel inside AIResponse / StreamEvent.
type Error struct {
	Status  int               `json:"-"`
	Message string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`

	// Log is an internal error for server-side logging only
	Log error `json:"-"`
}

func (e *Error) Error() string {
	if e.Log != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Status, e.Message, e.Log)
	}
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Log
}

type ErrorOption func(*Error)

// NewError creates a request level error.
func NewError(status int, message string, opts ...ErrorOption) *Error {
	e := &Error{
		Status:  status,
		Message: message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithDetails attaches field level information for the client.
func WithDetails(details map[string]string) ErrorOption {
	return func(e *Error) {
		e.Details = details
	}
}

// WithLog attaches an internal error for server-side logging
func WithLog(err error) ErrorOption {
	return func(e *Error) {
		e.Log = err
	}
}

// InvalidRequestError is returned when the inbound body is malformed or incomplete.
func InvalidRequestError(details map[string]string) *Error {
	return NewError(http.StatusBadRequest, "Invalid request body", WithDetails(details))
}

// InternalError is the catch-all for failures outside the per-model isolation boundary.
func InternalError(err error) *Error {
	return NewError(http.StatusInternalServerError, "Internal server error", WithLog(err))
}

// UnavailableError signals an optional subsystem that is switched off.
func UnavailableError(message string) *Error {
	return NewError(http.StatusServiceUnavailable, message)
}

// BadRequestError is a 400 with a plain message and no field details.
func BadRequestError(message string) *Error {
	return NewError(http.StatusBadRequest, message)
}

// UnauthorizedError is returned by the optional service key check.
func UnauthorizedError(message string) *Error {
	return NewError(http.StatusUnauthorized, message)
}

// TooManyRequestsError is returned by the rate limiter.
func TooManyRequestsError() *Error {
	return NewError(http.StatusTooManyRequests, "Rate limit exceeded")
}
