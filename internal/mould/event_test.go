package mould

import (
	"encoding/json"
	"testing"
)

func TestEventKindValid(t *testing.T) {
	valid := []EventKind{KindRequest, KindReady, KindItem, KindNext, KindReject, KindFail, KindDone, KindCancel, KindSuspended}
	for _, k := range valid {
		if !k.Valid() {
			t.Errorf("EventKind(%q).Valid() = false, want true", k)
		}
	}
	if EventKind("bogus").Valid() {
		t.Errorf("EventKind(%q).Valid() = true, want false", "bogus")
	}
}

func TestEventRoundTrip(t *testing.T) {
	cases := []Event{
		Empty(KindReady),
		Empty(KindDone),
		Empty(KindCancel),
	}
	withData, err := WithData(KindItem, map[string]any{"id": float64(42), "text": "hello"})
	if err != nil {
		t.Fatalf("WithData: %v", err)
	}
	cases = append(cases, withData)

	for _, want := range cases {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal %+v: %v", want, err)
		}
		var got Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got.Event != want.Event {
			t.Errorf("Event = %q, want %q", got.Event, want.Event)
		}
		if got.HasData() != want.HasData() {
			t.Errorf("HasData = %v, want %v (data %s)", got.HasData(), want.HasData(), data)
		}
	}
}

func TestUnmarshalUnknownKind(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"event":"bogus"}`), &e)
	if err == nil {
		t.Fatal("expected decode error for unknown kind, got nil")
	}
}

func TestEventNoDataOmitted(t *testing.T) {
	data, err := json.Marshal(Empty(KindDone))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"event":"done"}`
	if string(data) != want {
		t.Errorf("marshal(Empty(done)) = %s, want %s", data, want)
	}
}

func TestStringPayload(t *testing.T) {
	reject, err := WithData(KindReject, "forbidden")
	if err != nil {
		t.Fatalf("WithData: %v", err)
	}
	if got := reject.StringPayload("<no reject reason>"); got != "forbidden" {
		t.Errorf("StringPayload = %q, want %q", got, "forbidden")
	}

	bare := Empty(KindReject)
	if got := bare.StringPayload("<no reject reason>"); got != "<no reject reason>" {
		t.Errorf("StringPayload(bare) = %q, want fallback", got)
	}

	nonString, err := WithData(KindReject, map[string]any{"code": 7})
	if err != nil {
		t.Fatalf("WithData: %v", err)
	}
	if got := nonString.StringPayload("<no reject reason>"); got != "<no reject reason>" {
		t.Errorf("StringPayload(non-string) = %q, want fallback", got)
	}
}

func TestIsTerminalIsReady(t *testing.T) {
	for _, k := range []EventKind{KindDone, KindReject, KindFail} {
		if e := (Event{Event: k}); !e.IsTerminal() {
			t.Errorf("Event{%s}.IsTerminal() = false, want true", k)
		}
	}
	for _, k := range []EventKind{KindReady, KindItem, KindNext, KindRequest, KindCancel, KindSuspended} {
		if e := (Event{Event: k}); e.IsTerminal() {
			t.Errorf("Event{%s}.IsTerminal() = true, want false", k)
		}
	}
	if !(Event{Event: KindReady}).IsReady() {
		t.Error("Event{Ready}.IsReady() = false, want true")
	}
	if (Event{Event: KindItem}).IsReady() {
		t.Error("Event{Item}.IsReady() = true, want false")
	}
}
