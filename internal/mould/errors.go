package mould

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the fixed taxonomy of errors the driver and
// transport can surface. Every protocol or transport fault a caller sees
// is wrapped in an *Error carrying one of these kinds, so callers can
// branch on Kind() instead of matching error strings.
type ErrorKind int

const (
	// IoError is an underlying byte-channel error (read/write/dial failure).
	IoError ErrorKind = iota
	// EncodingError means received bytes were not valid UTF-8.
	EncodingError
	// SerdeError is a structured encode/decode failure not covered by a
	// more specific kind below.
	SerdeError
	// AsyncWebSocketError is a framing-layer error from the WebSocket library.
	AsyncWebSocketError
	// UnexpectedFormat covers a well-formed message with a disallowed
	// shape: a non-text frame, an unknown event kind, or an Item payload
	// that does not decode as the driver's item type.
	UnexpectedFormat
	// UnexpectedKind means an event kind arrived in a state that forbids it.
	UnexpectedKind
	// NoDataProvided means an Item event arrived with no payload.
	NoDataProvided
	// ActionRejected means the server sent Reject.
	ActionRejected
	// ActionFailed means the server sent Fail.
	ActionFailed
	// Interrupted means the fold computation failed, or the connection
	// was severed mid-interaction while a reply was still outstanding.
	Interrupted
	// InteractionFinished is reserved for callers attempting to drive an
	// already-completed interaction.
	InteractionFinished
	// Other is an escape hatch for conditions not covered above.
	Other
)

// String renders the kind the way the original taxonomy names it, for
// logging and for %v error formatting.
func (k ErrorKind) String() string {
	switch k {
	case IoError:
		return "IoError"
	case EncodingError:
		return "EncodingError"
	case SerdeError:
		return "SerdeError"
	case AsyncWebSocketError:
		return "AsyncWebSocketError"
	case UnexpectedFormat:
		return "UnexpectedFormat"
	case UnexpectedKind:
		return "UnexpectedKind"
	case NoDataProvided:
		return "NoDataProvided"
	case ActionRejected:
		return "ActionRejected"
	case ActionFailed:
		return "ActionFailed"
	case Interrupted:
		return "Interrupted"
	case InteractionFinished:
		return "InteractionFinished"
	default:
		return "Other"
	}
}

// Error is the concrete error type surfaced by this module. Reason holds
// the kind-specific detail string (an UnexpectedKind's offending kind, or
// a Reject/Fail reason); Err, when non-nil, is the underlying cause for
// kinds that wrap another error (IoError, SerdeError, ...).
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error of the given kind wrapping err.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewReasonError builds an *Error of the given kind carrying reason (a
// Reject/Fail reason string, or the offending kind name for UnexpectedKind).
func NewReasonError(kind ErrorKind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// KindOf reports the ErrorKind of err if it is (or wraps) a *mould.Error,
// and false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var me *Error
	if !errors.As(err, &me) {
		return 0, false
	}
	return me.Kind, true
}
