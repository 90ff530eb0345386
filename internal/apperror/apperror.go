// Package apperror defines the single business-error taxonomy rendered to
// clients. Anything that is not an *Error is treated as unexpected and
// surfaced as a generic internal error.
package apperror

import (
	"errors"
	"net/http"
)

// Stable machine-readable error codes.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error is a business error safe to show to the client.
type Error struct {
	Code    string
	Status  int
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// WithDetails attaches structured detail to the error and returns it.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// New builds an Error with an explicit code and status.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func NotFound(message string) *Error {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func BadRequest(message string) *Error {
	return New(CodeBadRequest, http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func TooManyRequests(message string) *Error {
	return New(CodeTooManyRequests, http.StatusTooManyRequests, message)
}

func Internal(message string) *Error {
	return New(CodeInternal, http.StatusInternalServerError, message)
}

// From extracts an *Error from err, reporting whether err was one.
func From(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
