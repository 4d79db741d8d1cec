// Package obs provides operational observability for the mould client:
// a publish/subscribe event bus for CLI progress output and a
// Prometheus-backed interaction.Recorder for counters suitable for
// scraping from a long-running process.
package obs

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceInteraction identifies events from an interaction.Driver run.
	SourceInteraction = "interaction"
	// SourceDial identifies events from establishing the WebSocket connection.
	SourceDial = "dial"
)

// Kind constants describe the type of event within a source.
const (
	// KindRequestSent signals the initial Request event was enqueued.
	// Data: service, action.
	KindRequestSent = "request_sent"
	// KindItemReceived signals an Item event was accepted into a fold call.
	// Data: none.
	KindItemReceived = "item_received"
	// KindReplySent signals a Next event carrying a fold reply was sent.
	// Data: none.
	KindReplySent = "reply_sent"
	// KindFinished signals an interaction reached a terminal state.
	// Data: outcome, service, action.
	KindFinished = "finished"
	// KindDialAttempt signals a WebSocket dial attempt began.
	// Data: url.
	KindDialAttempt = "dial_attempt"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe back
	// to the bidirectional channel stored in subs, so Unsubscribe can
	// accept the caller's <-chan Event without an illegal conversion.
	recvToSend map[<-chan Event]chan Event
}

// NewBus creates a new event bus ready for use.
func NewBus() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op), so callers that
// were not given a Bus don't need guard checks.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full — drop the event rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 32 is a reasonable default for a
// single CLI invocation's progress output.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
