package interaction

import "github.com/nugget/mould/internal/mould"

// Recorder observes interaction lifecycle events for logging, metrics, or
// UI purposes. It is entirely optional: a Driver built without
// WithRecorder, or with WithRecorder(nil), skips every call, the same
// nil-safe contract the teacher's event bus
// uses for its Publish method. Implementations must themselves tolerate a
// nil receiver if they want to be constructed lazily the way
// internal/obs.Bus does.
type Recorder interface {
	// RequestSent fires once, right after the bootstrap Request event is enqueued.
	RequestSent(req mould.InteractionRequest)
	// ItemReceived fires once per Item event accepted into a fold call.
	ItemReceived()
	// ReplySent fires once per Next event carrying a fold reply (not the
	// bootstrap empty Next).
	ReplySent()
	// Finished fires exactly once, with one of "done", "reject", "fail",
	// "interrupted", or "error".
	Finished(outcome string)
}

// noopRecorder discards every call. Used when a Driver is given no
// Recorder or a nil one, so the driver body never has to nil-check.
type noopRecorder struct{}

func (noopRecorder) RequestSent(mould.InteractionRequest) {}
func (noopRecorder) ItemReceived()                        {}
func (noopRecorder) ReplySent()                           {}
func (noopRecorder) Finished(string)                      {}
