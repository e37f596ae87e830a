// Package domainerrors provides coded errors that services return and the
// HTTP layer translates into status codes.
//
// Import as dErrors:
//
//	return dErrors.New(dErrors.CodeValidation, "photoURLs is required")
//	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verdict")
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-facing error classification.
type Code string

const (
	CodeBadRequest      Code = "bad_request"
	CodeValidation      Code = "validation_error"
	CodeInvalidInput    Code = "invalid_input"
	CodeNotFound        Code = "not_found"
	CodeUnauthorized    Code = "unauthorized"
	CodeTooManyRequests Code = "rate_limit_exceeded"
	CodePrecondition    Code = "precondition_failed"
	CodeUnavailable     Code = "service_unavailable"
	CodeBadGateway      Code = "bad_gateway"
	CodeInternal        Code = "internal_error"
)

// Error is a coded domain error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error with code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the first domain error in err's chain,
// or CodeInternal when none is present.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
