// Package domainerrors defines the error taxonomy shared by services and the
// HTTP layer. Stores return infrastructure sentinels; services wrap them with a
// Code here; transport translates codes to status codes in exactly one place.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for transport mapping and logging.
type Code string

const (
	CodeInvalidInput    Code = "invalid_input"
	CodeConflict        Code = "conflict"
	CodeUnauthorized    Code = "unauthorized"
	CodeForbidden       Code = "forbidden"
	CodeNotFound        Code = "not_found"
	CodePayloadTooLarge Code = "payload_too_large"
	CodeTimeout         Code = "timeout"
	CodeInternal        Code = "internal"
)

// Error carries a Code plus a stable, client-safe message. The wrapped cause
// (if any) is for logs only and must never reach a response body.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the Code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// MessageOf returns the client-safe message, or a generic one for untyped errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a Code onto the HTTP status the registry API uses.
// Conflict maps to 400: the public API (duplicate plate, duplicate email,
// duplicate pending transfer) has always reported these as bad requests.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeConflict:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
