package wsdial

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestResolveURLRejectsNonWS(t *testing.T) {
	cases := []string{"http://example.com", "https://example.com", "not a url%"}
	for _, raw := range cases {
		if _, err := ResolveURL(raw); err == nil {
			t.Errorf("ResolveURL(%q) = nil error, want rejection", raw)
		}
	}
}

func TestResolveURLAcceptsWS(t *testing.T) {
	for _, raw := range []string{"ws://example.com/socket", "wss://example.com/socket"} {
		if _, err := ResolveURL(raw); err != nil {
			t.Errorf("ResolveURL(%q) = %v, want nil", raw, err)
		}
	}
}

func TestDialSucceeds(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr, err := Dial(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tr.Close()

	if gotUA == "" {
		t.Error("expected a User-Agent header to be sent during handshake")
	}
}

func TestDialRejectsBadScheme(t *testing.T) {
	if _, err := Dial(context.Background(), "http://example.com"); err == nil {
		t.Error("Dial with http:// scheme: expected error, got nil")
	}
}
