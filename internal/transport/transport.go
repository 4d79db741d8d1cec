// Package transport adapts an established WebSocket connection into a
// typed, bidirectional stream of mould.Event values. It is kind-agnostic:
// it does not interpret what an Event means, only how it is framed on the
// wire. All protocol logic lives in internal/interaction.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/nugget/mould/internal/mould"
)

// Transport wraps a *websocket.Conn and exposes it as an Event source and
// sink. A background goroutine owns the connection's read side and feeds
// decoded Events onto a channel; Send and Flush are safe to call from any
// goroutine and are serialized internally, matching the single-writer
// requirement of gorilla/websocket connections.
type Transport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	events  chan mould.Event
	readErr error

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// New wraps an already-established WebSocket connection. The caller is
// expected to have completed the handshake (see internal/wsdial.Dial);
// New immediately starts the background read loop.
func New(conn *websocket.Conn, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		conn:   conn,
		logger: logger,
		events: make(chan mould.Event, 16),
	}
	go t.readLoop()
	return t
}

// Recv returns the channel of incoming Events. The channel is closed when
// the underlying connection closes, whether cleanly or due to an error;
// call Err after the channel closes to distinguish the two (a nil Err
// means a clean close — end-of-stream).
func (t *Transport) Recv() <-chan mould.Event {
	return t.events
}

// Err returns the error that caused the read loop to stop, if any. It is
// only meaningful after the channel returned by Recv has been closed.
func (t *Transport) Err() error {
	return t.readErr
}

// readLoop reads frames until the connection closes or a read fails. A
// non-text frame or an Event whose kind is not in the closed enumeration
// is reported as UnexpectedFormat and ends the loop, mirroring the source
// contract: "rejects non-text frames" and "unknown kind is a decoding
// error".
func (t *Transport) readLoop() {
	defer close(t.events)

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return // clean end-of-stream, t.readErr stays nil
			}
			t.readErr = mould.NewError(mould.AsyncWebSocketError, err)
			return
		}

		if msgType != websocket.TextMessage {
			t.readErr = mould.NewReasonError(mould.UnexpectedFormat, "non-text frame")
			return
		}

		if !utf8.Valid(data) {
			t.readErr = mould.NewError(mould.EncodingError, fmt.Errorf("frame is not valid UTF-8"))
			return
		}

		var ev mould.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.readErr = mould.NewReasonError(mould.UnexpectedFormat, err.Error())
			return
		}

		t.events <- ev
	}
}

// Send serializes ev to a single text message and enqueues it on the
// underlying connection. Send does not itself guarantee delivery; call
// Flush to drive the write toward the peer.
func (t *Transport) Send(ctx context.Context, ev mould.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return mould.NewError(mould.SerdeError, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(dl)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return mould.NewError(mould.AsyncWebSocketError, err)
	}
	return nil
}

// Flush drives the underlying connection toward having delivered queued
// messages. gorilla/websocket writes synchronously within WriteMessage,
// so by the time Send returns the frame has already left the process;
// Flush exists to satisfy the Transport contract (a separate flush step)
// for callers written against the abstract interface, and as the place a
// future buffered-write implementation would plug in real flushing.
func (t *Transport) Flush(ctx context.Context) error {
	return nil
}

// Close closes the underlying connection. Safe to call more than once.
func (t *Transport) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
