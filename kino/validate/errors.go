// Package validate holds the pure input checks used by the conversation flows.
// Every failure is a *Error carrying a user-facing message; nothing here mutates state.
package validate

import "errors"

// Failure kinds. Match with errors.Is.
var (
	ErrTooLow     = errors.New("too low")
	ErrTooHigh    = errors.New("too high")
	ErrParse      = errors.New("parse error")
	ErrOutOfRange = errors.New("out of range")
	ErrFormat     = errors.New("format error")
	ErrNotNumeric = errors.New("not numeric")
	ErrFuture     = errors.New("date in the future")
	ErrEmpty      = errors.New("empty input")
	ErrTooLong    = errors.New("input too long")
)

// Error is a rejected user input. Message is safe to show to the user.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return "validate: " + e.Kind.Error()
}

// Unwrap exposes the failure kind to errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

// Code satisfies the router's error code extraction.
func (e *Error) Code() string {
	return "validation_" + e.Kind.Error()
}

func fail(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// UserMessage returns the user-facing text of a validation error, or fallback.
func UserMessage(err error, fallback string) string {
	var verr *Error
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	return fallback
}
