package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a business-rule violation carrying the HTTP status it maps to.
// Every operation boundary converts its failures into one of these; nothing
// else is allowed to leak to the caller.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(status int, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg string) *Error { return &Error{Status: http.StatusUnauthorized, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Status: http.StatusForbidden, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Status: http.StatusNotFound, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Status: http.StatusConflict, Message: msg} }
func Validation(msg string) *Error   { return &Error{Status: http.StatusBadRequest, Message: msg} }

// Status returns the HTTP status for err, or 500 for anything that is not an
// *Error.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Message returns the caller-visible message for err. Unstructured failures
// are masked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
