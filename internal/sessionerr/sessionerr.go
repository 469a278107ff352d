// Package sessionerr defines the controller's error-kind taxonomy so the
// RPC bridge, CLI, and scheduler can agree on a machine-checkable failure
// classification without resorting to string matching.
package sessionerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed. It is not a type hierarchy;
// every Kind wraps an underlying error via Error.
type Kind string

const (
	Validation   Kind = "validation"
	QueueFull    Kind = "queue-full"
	Timeout      Kind = "timeout"
	Cancelled    Kind = "cancelled"
	SpawnError   Kind = "spawn-error"
	Stalled      Kind = "stalled"
	SessionDown  Kind = "session-down"
	AuthError    Kind = "auth"
	Persistence  Kind = "persistence"
	NotFound     Kind = "not-found"
	AlreadyExist Kind = "already-exists"
)

// Error is a Kind-tagged error. Its message is bounded so it is safe to
// surface verbatim to an RPC caller.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

const maxMsgLen = 500

func (e *Error) Error() string {
	msg := e.Msg
	if len(msg) > maxMsgLen {
		msg = msg[:maxMsgLen] + "...(truncated)"
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving it for errors.Is/As.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: err.Error(), Err: err}
}

// KindOf extracts the Kind from err, defaulting to "" when err does not
// carry one.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
