package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nugget/mould/internal/mould"
	"github.com/nugget/mould/internal/obs"
)

func TestFoldCollectAppendsItems(t *testing.T) {
	var acc []json.RawMessage
	items := []json.RawMessage{[]byte(`1`), []byte(`2`), []byte(`3`)}

	var err error
	for _, item := range items {
		var reply *struct{}
		acc, reply, err = foldCollect(context.Background(), acc, item)
		if err != nil {
			t.Fatalf("foldCollect error: %v", err)
		}
		if reply != nil {
			t.Errorf("foldCollect reply = %v, want nil", reply)
		}
	}

	if len(acc) != 3 {
		t.Fatalf("acc length = %d, want 3", len(acc))
	}
	for i, item := range items {
		if string(acc[i]) != string(item) {
			t.Errorf("acc[%d] = %s, want %s", i, acc[i], item)
		}
	}
}

func TestPrintOutcomeDoesNotPanic(t *testing.T) {
	// printOutcome writes to stdout; this test only verifies it handles
	// both a reject error and a generic error without panicking.
	printOutcome(mould.NewReasonError(mould.ActionRejected, "not allowed"))
	printOutcome(mould.NewError(mould.Interrupted, nil))
}

func TestPrintProgressDrainsUntilClosed(t *testing.T) {
	// printProgress writes to stderr; this test only verifies it reads
	// every published kind without panicking and returns once the bus
	// unsubscribes (closes the channel) rather than blocking forever.
	bus := obs.NewBus()
	events := bus.Subscribe(8)

	done := make(chan struct{})
	go func() {
		printProgress(events)
		close(done)
	}()

	bus.Publish(obs.Event{Source: obs.SourceInteraction, Kind: obs.KindRequestSent, Data: map[string]any{"service": "weather", "action": "forecast"}})
	bus.Publish(obs.Event{Source: obs.SourceInteraction, Kind: obs.KindItemReceived})
	bus.Publish(obs.Event{Source: obs.SourceInteraction, Kind: obs.KindReplySent})
	bus.Publish(obs.Event{Source: obs.SourceInteraction, Kind: obs.KindFinished, Data: map[string]any{"outcome": "success"}})
	bus.Unsubscribe(events)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("printProgress did not return after the bus unsubscribed")
	}
}
