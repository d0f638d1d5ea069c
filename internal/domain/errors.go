package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrorCode is the user-facing error class, surfaced as extensions.code.
type ErrorCode string

const (
	CodeBadUserInput ErrorCode = "BAD_USER_INPUT"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeInternal     ErrorCode = "INTERNAL_SERVER_ERROR"
)

// Error causes, surfaced as extensions.cause.
const (
	CauseConcurrentUpdate     = "CONCURRENT_UPDATE"
	CauseInvalidPackageStatus = "INVALID_PACKAGE_STATUS"
	CauseInvalidRateStatus    = "INVALID_RATE_STATUS"
	CauseMissingFields        = "MISSING_REQUIRED_FIELDS"
	CauseFeatureDisabled      = "FEATURE_DISABLED"
	CauseUnexpectedException  = "UNEXPECTED_EXCEPTION"
)

// Error is a typed, user-facing failure.
type Error struct {
	Code         ErrorCode
	Cause        string
	ArgumentName string
	Message      string
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithCause sets the cause and returns e.
func (e *Error) WithCause(cause string) *Error {
	e.Cause = cause
	return e
}

// WithArgument names the offending input argument.
func (e *Error) WithArgument(name string) *Error {
	e.ArgumentName = name
	return e
}

func BadUserInput(format string, args ...any) *Error {
	return &Error{Code: CodeBadUserInput, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure with a descriptive message.
func Internal(err error, format string, args ...any) *Error {
	return &Error{
		Code:    CodeInternal,
		Cause:   CauseUnexpectedException,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, INTERNAL_SERVER_ERROR for untyped errors.
func CodeOf(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return CodeInternal
}
