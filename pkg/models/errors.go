package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies retrieval failures.
type ErrorKind string

const (
	KindAuthenticationFailed ErrorKind = "AuthenticationFailed"
	KindSubmissionFailed     ErrorKind = "SubmissionFailed"
	KindJobFailed            ErrorKind = "JobFailed"
	KindJobTimeout           ErrorKind = "JobTimeout"
	KindTransportError       ErrorKind = "TransportError"
	KindParseError           ErrorKind = "ParseError"
	KindUnsupportedVendor    ErrorKind = "UnsupportedVendor"
	KindDeviceNotFound       ErrorKind = "DeviceNotFound"
	KindNoCandidateDevices   ErrorKind = "NoCandidateDevices"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrAuthenticationFailed = &Error{Kind: KindAuthenticationFailed}
	ErrSubmissionFailed     = &Error{Kind: KindSubmissionFailed}
	ErrJobFailed            = &Error{Kind: KindJobFailed}
	ErrJobTimeout           = &Error{Kind: KindJobTimeout}
	ErrTransport            = &Error{Kind: KindTransportError}
	ErrParse                = &Error{Kind: KindParseError}
	ErrUnsupportedVendor    = &Error{Kind: KindUnsupportedVendor}
	ErrDeviceNotFound       = &Error{Kind: KindDeviceNotFound}
	ErrNoCandidateDevices   = &Error{Kind: KindNoCandidateDevices}
)

const maxBodyLen = 1200

// Error is a typed retrieval error. Body holds the last vendor response
// captured before the failure, truncated for diagnostics.
type Error struct {
	Kind   ErrorKind
	Device string
	Op     string
	Body   string
	Err    error
}

// NewError builds an error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithBody attaches a (truncated) response body.
func (e *Error) WithBody(body string) *Error {
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}
	e.Body = body
	return e
}

// WithDevice labels the error with a device name.
func (e *Error) WithDevice(name string) *Error {
	e.Device = name
	return e
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Device != "" {
		msg += " [" + e.Device + "]"
	}
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the exported sentinels work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Errorf is a shorthand for NewError with a formatted cause.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return NewError(kind, op, fmt.Errorf(format, args...))
}
