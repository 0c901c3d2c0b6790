package crqa

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes the accelerator error kinds of spec §7.
// KernelDegenerate has no code: the Kernel returns a defined zero
// bundle for a degenerate input, never an error.
type ErrorCode string

const (
	// ErrCodeProtocolStale is a shared-buffer trigger whose id did not
	// match the current trigger_counter. Rejected silently by the
	// Device Model; this code exists for callers that want to surface
	// it as an error anyway (e.g. a Client retry loop).
	ErrCodeProtocolStale ErrorCode = "protocol stale trigger"

	// ErrCodeIPCTransient is a failed Compute Server exchange (short
	// read/write, dial failure, connection reset) after the Device
	// Model's retries are exhausted.
	ErrCodeIPCTransient ErrorCode = "ipc transient failure"

	// ErrCodeInvalidFieldWrite is an out-of-range register index or a
	// non-finite sample value. The Device Model drops these silently;
	// this code is for callers that validate before writing.
	ErrCodeInvalidFieldWrite ErrorCode = "invalid field write"

	// ErrCodeMalformedFrame is a request frame of the wrong length.
	// The Compute Server closes the session without responding.
	ErrCodeMalformedFrame ErrorCode = "malformed frame"

	// ErrCodeFileLoad is a missing or unreadable signal file on the
	// Client.
	ErrCodeFileLoad ErrorCode = "file load failure"
)

// Error is the accelerator's structured error type: an operation name,
// a high-level code, a human-readable message, and an optional wrapped
// cause, supporting errors.Is/errors.As via Unwrap.
type Error struct {
	Op    string    // operation that failed, e.g. "SharedBufferTrigger", "Dial"
	Code  ErrorCode // high-level error category
	Msg   string    // human-readable message
	Inner error     // wrapped error, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("crqa: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("crqa: %s", msg)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is compares by ErrorCode, so errors.Is(err, &Error{Code: ErrCodeIPCTransient})
// matches regardless of Op/Msg/Inner.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds a structured Error with no wrapped cause.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps inner with accelerator context, re-keying the
// operation while preserving inner's code if it is already a
// structured Error.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ie, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: ie.Code, Msg: ie.Msg, Inner: ie.Inner}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// ErrInvalidParameters is returned by operations given a nil or
// otherwise unusable receiver/argument combination.
var ErrInvalidParameters = NewError("", ErrCodeInvalidFieldWrite, "invalid parameters")

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
