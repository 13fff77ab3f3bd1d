// Package errs defines the error taxonomy used across resim-launch.
// Every failure that reaches the top-level command carries a Code so callers
// can tell configuration mistakes apart from missing resources and transport
// failures without matching on message text.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. Codes are strings so they read well in
// logs and CI output.
type Code string

const (
	// CodeConfiguration marks a terminal input problem detected before any
	// network call: missing credentials, conflicting batch targets, bad ranges.
	CodeConfiguration Code = "INVALID_CONFIGURATION"

	// CodeNotFound marks a named resource absent from a complete listing.
	CodeNotFound Code = "NOT_FOUND"

	// CodeTransport marks a network failure or a non-2xx API response.
	CodeTransport Code = "NETWORK_ERROR"

	// CodeUnsupportedTrigger marks a CI event outside the allow-list.
	CodeUnsupportedTrigger Code = "UNSUPPORTED_TRIGGER"

	// CodeUnauthorized marks a token endpoint response that carried no token.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeInternal marks local I/O and other unexpected failures.
	CodeInternal Code = "INTERNAL_ERROR"
)

// Error is a coded error with an optional operation name and cause.
type Error struct {
	Code Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a coded error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and operation to err. A nil err stays nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// Config is shorthand for a configuration error.
func Config(format string, args ...any) *Error {
	return Newf(CodeConfiguration, format, args...)
}

// NotFound is shorthand for a not-found error.
func NotFound(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// CodeOf returns the code of the outermost coded error in err's chain, or
// CodeInternal for uncoded errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
