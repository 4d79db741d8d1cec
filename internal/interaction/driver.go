// Package interaction implements the client-side state machine that
// drives one mould interaction to completion over an internal/transport.
// It couples the transport's Event stream with a caller-supplied Fold
// function, enforcing the protocol's ordering, backpressure, and
// termination rules described in the package-level design notes below.
//
// The driver never sends more than one Next per received Ready (save the
// payload-less bootstrap Next answering the first Ready), never invokes
// Fold more than once concurrently, and always processes Items strictly
// in arrival order. A Ready that arrives while a Fold call is still
// in flight is remembered, not dropped: its reply is flushed the instant
// the Fold resolves.
package interaction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nugget/mould/internal/mould"
)

// Conn is the subset of internal/transport.Transport's behavior the
// driver depends on. Accepting an interface rather than the concrete type
// lets tests drive the state machine against an in-memory fake instead of
// a real socket, and keeps interaction decoupled from the WebSocket
// framing details transport.Transport owns.
type Conn interface {
	// Recv returns the channel of incoming Events, closed at end-of-stream.
	Recv() <-chan mould.Event
	// Send serializes and enqueues ev.
	Send(ctx context.Context, ev mould.Event) error
	// Err returns the error that closed Recv's channel, or nil for a clean close.
	Err() error
}

// foldOutcome carries one Fold invocation's result back to Run's select
// loop over a dedicated channel.
type foldOutcome[T, O any] struct {
	acc   T
	reply *O
	err   error
}

// Driver runs a single interaction over a Conn it owns for the duration
// of Run. Construct one with NewDriver and call Run exactly once; Run
// surrenders the Conn back to the caller on success.
type Driver[T, I, O any] struct {
	conn     Conn
	request  mould.InteractionRequest
	fold     Fold[T, I, O]
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Driver.
type Option[T, I, O any] func(*Driver[T, I, O])

// WithLogger attaches a structured logger used for warnings (e.g. a
// best-effort Cancel send that failed) and debug tracing.
func WithLogger[T, I, O any](l *slog.Logger) Option[T, I, O] {
	return func(d *Driver[T, I, O]) { d.logger = l }
}

// WithRecorder attaches a Recorder observing interaction lifecycle events.
// A nil r leaves the default no-op recorder in place.
func WithRecorder[T, I, O any](r Recorder) Option[T, I, O] {
	return func(d *Driver[T, I, O]) {
		if r != nil {
			d.recorder = r
		}
	}
}

// NewDriver constructs a Driver over conn. The interaction is not started
// until Run is called.
func NewDriver[T, I, O any](conn Conn, request mould.InteractionRequest, fold Fold[T, I, O], opts ...Option[T, I, O]) *Driver[T, I, O] {
	d := &Driver[T, I, O]{
		conn:     conn,
		request:  request,
		fold:     fold,
		logger:   slog.Default(),
		recorder: noopRecorder{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run drives the interaction from the initial Request through to Done,
// Reject, or Fail (or a tolerant end-of-stream), returning the final
// accumulator and the Conn for reuse by the caller.
func (d *Driver[T, I, O]) Run(ctx context.Context, init T) (T, Conn, error) {
	var zero T

	reqEvent, err := mould.WithData(mould.KindRequest, d.request)
	if err != nil {
		d.recorder.Finished("error")
		return zero, nil, mould.NewError(mould.SerdeError, err)
	}
	if err := d.conn.Send(ctx, reqEvent); err != nil {
		d.recorder.Finished("error")
		return zero, nil, err
	}
	d.recorder.RequestSent(d.request)

	acc := init
	needNext := true  // awaiting the bootstrap Ready (state S1)
	isDone := false   // latched by Done (state S3 "draining" once true)
	readyOwed := false
	haveReply := false
	var pendingReply *O

	events := d.conn.Recv()
	var pending chan foldOutcome[T, O] // non-nil exactly while a Fold call is in flight

	finish := func(outcome string) {
		d.recorder.Finished(outcome)
	}

	for {
		select {
		case out := <-pending:
			pending = nil
			if out.err != nil {
				d.sendCancel(ctx)
				finish("interrupted")
				return zero, nil, mould.NewError(mould.Interrupted, out.err)
			}
			acc = out.acc
			if isDone {
				finish("done")
				return acc, d.conn, nil
			}
			if readyOwed {
				if err := d.sendNext(ctx, out.reply); err != nil {
					finish("error")
					return zero, nil, err
				}
				readyOwed = false
			} else {
				haveReply = true
				pendingReply = out.reply
			}

		case ev, open := <-events:
			if !open {
				if pending != nil {
					if isDone {
						// Closed after Done: stop selecting on the closed
						// stream and keep draining the pending fold.
						events = nil
						continue
					}
					finish("interrupted")
					return zero, nil, mould.NewError(mould.Interrupted, d.conn.Err())
				}
				if err := d.conn.Err(); err != nil {
					finish("error")
					return zero, nil, err
				}
				finish("done")
				return acc, d.conn, nil
			}

			if !isServerToClient(ev.Event) {
				d.sendCancel(ctx)
				finish("error")
				return zero, nil, mould.NewReasonError(mould.UnexpectedKind, string(ev.Event))
			}

			if needNext && ev.Event != mould.KindReady && ev.Event != mould.KindReject && ev.Event != mould.KindFail {
				d.sendCancel(ctx)
				finish("error")
				return zero, nil, mould.NewReasonError(mould.UnexpectedKind, string(ev.Event))
			}

			switch ev.Event {
			case mould.KindReject:
				finish("reject")
				return zero, nil, mould.NewReasonError(mould.ActionRejected, ev.StringPayload("<no reject reason>"))

			case mould.KindFail:
				finish("fail")
				return zero, nil, mould.NewReasonError(mould.ActionFailed, ev.StringPayload("<no fail reason>"))

			case mould.KindSuspended:
				// Reserved for higher-level resumption logic, not in scope.
				d.sendCancel(ctx)
				finish("error")
				return zero, nil, mould.NewReasonError(mould.UnexpectedKind, string(ev.Event))

			case mould.KindReady:
				switch {
				case needNext:
					if err := d.sendNext(ctx, nil); err != nil {
						finish("error")
						return zero, nil, err
					}
					needNext = false
				case haveReply:
					if err := d.sendNext(ctx, pendingReply); err != nil {
						finish("error")
						return zero, nil, err
					}
					haveReply = false
					pendingReply = nil
				default:
					// Fold is still running (or there is nothing to
					// reply to yet): remember this Ready so its Next is
					// sent the moment the Fold resolves, instead of
					// dropping it.
					readyOwed = true
				}

			case mould.KindItem:
				if pending != nil || haveReply {
					// The previous Item's reply has not been sent as a
					// Next yet, so a new Item is out of sequence.
					d.sendCancel(ctx)
					finish("error")
					return zero, nil, mould.NewReasonError(mould.UnexpectedKind, string(ev.Event))
				}
				if !ev.HasData() {
					d.sendCancel(ctx)
					finish("error")
					return zero, nil, mould.NewError(mould.NoDataProvided, nil)
				}
				var item I
				if err := json.Unmarshal(ev.Data, &item); err != nil {
					d.sendCancel(ctx)
					finish("error")
					return zero, nil, mould.NewError(mould.UnexpectedFormat, fmt.Errorf("decode item: %w", err))
				}
				d.recorder.ItemReceived()

				ch := make(chan foldOutcome[T, O], 1)
				fold := d.fold
				go func(acc T, item I) {
					newAcc, reply, err := fold(ctx, acc, item)
					ch <- foldOutcome[T, O]{acc: newAcc, reply: reply, err: err}
				}(acc, item)
				pending = ch
				readyOwed = false
				haveReply = false
				pendingReply = nil

			case mould.KindDone:
				isDone = true
				if pending == nil {
					finish("done")
					return acc, d.conn, nil
				}
				// Remain in the draining state: this loop keeps running
				// until pending resolves, then returns without sending a
				// further Next.
			}
		}
	}
}

// sendNext sends a Next event, with payload when reply is non-nil or an
// absent payload otherwise (the bootstrap Next is always called with a
// nil reply).
func (d *Driver[T, I, O]) sendNext(ctx context.Context, reply *O) error {
	if reply == nil {
		return d.conn.Send(ctx, mould.Empty(mould.KindNext))
	}
	ev, err := mould.WithData(mould.KindNext, reply)
	if err != nil {
		return mould.NewError(mould.SerdeError, err)
	}
	if err := d.conn.Send(ctx, ev); err != nil {
		return err
	}
	d.recorder.ReplySent()
	return nil
}

// sendCancel makes a best-effort attempt to notify the server that the
// client is abandoning the interaction. Delivery is not part of Run's
// success criteria: failures are logged and otherwise ignored, per the
// design note that Cancel delivery must never change the error the
// caller sees.
func (d *Driver[T, I, O]) sendCancel(ctx context.Context) {
	if err := d.conn.Send(ctx, mould.Empty(mould.KindCancel)); err != nil {
		d.logger.Warn("failed to send best-effort cancel", "error", err)
	}
}

// isServerToClient reports whether kind is one the server, not the
// client, is allowed to send. Request, Next, and Cancel are client-only
// and must never arrive from the peer.
func isServerToClient(kind mould.EventKind) bool {
	switch kind {
	case mould.KindReady, mould.KindItem, mould.KindReject, mould.KindFail, mould.KindDone, mould.KindSuspended:
		return true
	default:
		return false
	}
}
