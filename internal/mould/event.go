// Package mould defines the wire-level data model for the mould
// interaction protocol: the Event envelope, its closed kind enumeration,
// and the InteractionRequest body that opens an interaction. The package
// has no I/O of its own; it is consumed by internal/transport for framing
// and by internal/interaction for protocol logic.
package mould

import (
	"encoding/json"
	"fmt"
)

// EventKind is the closed set of event kinds exchanged between client and
// server. The zero value is not a valid kind; always construct an Event
// through one of the helpers below or decode one from the wire.
type EventKind string

// Canonical event kind spellings. These are the only strings the wire
// format recognizes; decoding any other string is an error.
const (
	KindRequest   EventKind = "request"
	KindReady     EventKind = "ready"
	KindItem      EventKind = "item"
	KindNext      EventKind = "next"
	KindReject    EventKind = "reject"
	KindFail      EventKind = "fail"
	KindDone      EventKind = "done"
	KindCancel    EventKind = "cancel"
	KindSuspended EventKind = "suspended"
)

// Valid reports whether k is one of the nine canonical kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindRequest, KindReady, KindItem, KindNext, KindReject, KindFail, KindDone, KindCancel, KindSuspended:
		return true
	default:
		return false
	}
}

// Event is a single protocol message: a kind plus an optional payload.
// Data is nil when the event carries no payload, distinguishing "absent"
// from "null" and from a zero-value payload.
type Event struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wireEvent mirrors Event's JSON shape but lets us validate Event before
// exposing it — unmarshaling into EventKind directly would accept any
// string, so the kind check happens here.
type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the event as {"event":"<kind>","data":<payload>},
// omitting "data" entirely when there is no payload.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{Event: string(e.Event), Data: e.Data})
}

// UnmarshalJSON decodes an Event, rejecting any kind string outside the
// closed enumeration in EventKind.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	kind := EventKind(w.Event)
	if !kind.Valid() {
		return fmt.Errorf("mould: unknown event kind %q", w.Event)
	}
	e.Event = kind
	e.Data = w.Data
	return nil
}

// Empty builds an Event of the given kind with no payload, e.g. the
// bootstrap Next or a bare Cancel/Done/Ready.
func Empty(kind EventKind) Event {
	return Event{Event: kind}
}

// WithData builds an Event of the given kind carrying v, marshaled to
// JSON. It returns an error only if v cannot be marshaled by
// encoding/json, which indicates a caller bug (e.g. a channel or func value), not a runtime
// condition — callers pass plain data types.
func WithData(kind EventKind, v any) (Event, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("mould: encode %s payload: %w", kind, err)
	}
	return Event{Event: kind, Data: raw}, nil
}

// HasData reports whether the event carries a payload.
func (e Event) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

// IsTerminal reports whether this event kind ends an interaction:
// Done, Reject, or Fail.
func (e Event) IsTerminal() bool {
	switch e.Event {
	case KindDone, KindReject, KindFail:
		return true
	default:
		return false
	}
}

// IsReady reports whether this event is the server's Ready signal.
func (e Event) IsReady() bool {
	return e.Event == KindReady
}

// StringPayload extracts the payload as a bare JSON string, falling back
// to fallback when the payload is absent or is not a JSON string. Used to
// decode Reject/Fail reasons, which are "taken verbatim from the payload
// when it is a string scalar".
func (e Event) StringPayload(fallback string) string {
	if !e.HasData() {
		return fallback
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return fallback
	}
	return s
}

// InteractionRequest is the body of the initial Request event: the
// (service, action) pair identifying the interaction, plus a free-form
// payload of arguments.
type InteractionRequest struct {
	Service string         `json:"service"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}
