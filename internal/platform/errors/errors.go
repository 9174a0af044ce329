// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
)

// ErrorCode defines supported error codes used across the client
// Values are stable for analytics compatibility; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeTransport is for connect/read I/O and TLS failures
	ErrorCodeTransport

	// ErrorCodeDecode is for wire message decode failures
	ErrorCodeDecode

	// ErrorCodeRateLimited is for HTTP 429 responses
	ErrorCodeRateLimited

	// ErrorCodeUnauthorized is for HTTP 401/403 responses
	ErrorCodeUnauthorized

	// ErrorCodeMalformedTask is for tasks the client cannot parse
	ErrorCodeMalformedTask

	// ErrorCodeGuestProgram is for a prover subprocess exiting non-zero
	ErrorCodeGuestProgram

	// ErrorCodeProver is for proving backend or verification failures
	ErrorCodeProver

	// ErrorCodeSerialization is for proof encoding failures
	ErrorCodeSerialization

	// ErrorCodeValidation is for bad input parameters
	ErrorCodeValidation

	// ErrorCodeNotFound is for missing resources (config, user, node)
	ErrorCodeNotFound
)

// Error is the structured error type with wrapping and metadata
// msg is human/developer facing; code is machine facing
// op is an optional operation tag; orig is the wrapped cause
type Error struct {
	orig error
	msg  string
	code ErrorCode
	op   string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// Sugar

// MalformedTaskf returns a malformed task error
func MalformedTaskf(format string, a ...any) error { return Newf(ErrorCodeMalformedTask, format, a...) }

// InvalidArgf returns a validation error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeValidation, format, a...) }

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// Proverf returns a proving backend error
func Proverf(format string, a ...any) error { return Newf(ErrorCodeProver, format, a...) }

// Retry semantics

// Retryable reports whether a failure may be retried inline. Transport and
// decode failures are transient; rate limiting is absorbed by the request
// timer, and every other code is final for the attempt. HTTP status errors
// carry their own retry rules on the network side
func Retryable(err error) bool {
	switch CodeOf(err) {
	case ErrorCodeTransport, ErrorCodeDecode:
		return true
	default:
		return false
	}
}
