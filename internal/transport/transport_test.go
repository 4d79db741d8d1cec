package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nugget/mould/internal/mould"
)

// newPair starts a test HTTP server that upgrades one connection and
// returns a client-side Transport plus the raw server-side connection for
// the test to drive directly.
func newPair(t *testing.T) (*Transport, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConnCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	serverConn := <-serverConnCh
	t.Cleanup(func() { serverConn.Close() })

	return New(clientConn, nil), serverConn
}

func TestTransportRecvDecodesEvent(t *testing.T) {
	tr, server := newPair(t)
	defer tr.Close()

	if err := server.WriteJSON(mould.Empty(mould.KindReady)); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case ev := <-tr.Recv():
		if ev.Event != mould.KindReady {
			t.Errorf("Event = %q, want %q", ev.Event, mould.KindReady)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestTransportSendSerializes(t *testing.T) {
	tr, server := newPair(t)
	defer tr.Close()

	req := mould.InteractionRequest{Service: "chat", Action: "list", Payload: map[string]any{}}
	ev, err := mould.WithData(mould.KindRequest, req)
	if err != nil {
		t.Fatalf("WithData: %v", err)
	}
	if err := tr.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Errorf("msgType = %d, want TextMessage", msgType)
	}
	if !strings.Contains(string(data), `"event":"request"`) {
		t.Errorf("encoded frame = %s, missing event field", data)
	}
}

func TestTransportRejectsNonTextFrame(t *testing.T) {
	tr, server := newPair(t)
	defer tr.Close()

	if err := server.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("server write binary: %v", err)
	}

	select {
	case _, ok := <-tr.Recv():
		if ok {
			t.Fatal("expected channel to close on non-text frame, got an event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	kind, ok := mould.KindOf(tr.Err())
	if !ok || kind != mould.UnexpectedFormat {
		t.Errorf("Err() kind = %v (ok=%v), want UnexpectedFormat", kind, ok)
	}
}

func TestTransportEndOfStream(t *testing.T) {
	tr, server := newPair(t)
	defer tr.Close()

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := server.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("server write close: %v", err)
	}

	select {
	case _, ok := <-tr.Recv():
		if ok {
			t.Fatal("expected channel to close on clean shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	if tr.Err() != nil {
		t.Errorf("Err() = %v, want nil on clean close", tr.Err())
	}
}
