package commerce

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so callers (HTTP handlers, the
// webhook workflow) can pick a retry and status policy per kind without
// string-matching messages.
type ErrorKind int

const (
	// KindValidation is malformed input. Fatal, never retried.
	KindValidation ErrorKind = iota
	// KindConflict is a state collision: seat exhausted, transfer already
	// pending, duplicate confirm. Surfaced to the caller, not retried.
	KindConflict
	// KindNotFound is an unknown purchase/pool/transfer. The webhook
	// workflow retries these a bounded number of times to absorb
	// out-of-order delivery; everyone else surfaces them immediately.
	KindNotFound
)

// Error is a typed engine error.
type Error struct {
	Kind ErrorKind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidation builds a validation error with a stable code.
func NewValidation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: msg}
}

// NewConflict builds a conflict error with a stable code.
func NewConflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Msg: msg}
}

// NewNotFound builds a not-found error with a stable code.
func NewNotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Msg: msg}
}

// Wrap attaches an underlying cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Msg: e.Msg, Err: err}
}

func kindOf(err error, kind ErrorKind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return kindOf(err, KindValidation) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return kindOf(err, KindConflict) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return kindOf(err, KindNotFound) }

// CodeOf returns the stable code of a typed engine error, or "" for
// untyped errors.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
