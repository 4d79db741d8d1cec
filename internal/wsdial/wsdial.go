// Package wsdial resolves and dials the WebSocket endpoint an Interaction
// Driver talks to. It plays the role internal/httpkit plays for outbound
// HTTP in the teacher: one shared place that builds a correctly-configured
// dialer (timeouts, TLS, buffer sizes) instead of each caller constructing
// its own.
package wsdial

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nugget/mould/internal/buildinfo"
	"github.com/nugget/mould/internal/mould"
	"github.com/nugget/mould/internal/transport"
)

// Default dialer timeouts and buffer sizes. Large read buffers matter
// here the same way they do for the teacher's Home Assistant client:
// interaction payloads are free-form structured values and a single Item
// can be large.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadBufferSize   = 64 * 1024
	DefaultWriteBufferSize  = 16 * 1024
)

// Option configures a Dial call.
type Option func(*dialConfig)

type dialConfig struct {
	handshakeTimeout      time.Duration
	readBufferSize        int
	writeBufferSize       int
	tlsInsecureSkipVerify bool
	header                map[string][]string
	logger                *slog.Logger
}

// WithHandshakeTimeout overrides the default WebSocket handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *dialConfig) { c.handshakeTimeout = d }
}

// WithBufferSizes overrides the default read/write buffer sizes.
func WithBufferSizes(read, write int) Option {
	return func(c *dialConfig) { c.readBufferSize, c.writeBufferSize = read, write }
}

// WithTLSInsecureSkipVerify skips TLS certificate verification. Use only
// for local/development targets, never in production.
func WithTLSInsecureSkipVerify() Option {
	return func(c *dialConfig) { c.tlsInsecureSkipVerify = true }
}

// WithLogger attaches a logger to the resulting Transport.
func WithLogger(l *slog.Logger) Option {
	return func(c *dialConfig) { c.logger = l }
}

// WithHeader adds an HTTP header sent with the handshake request, e.g. a
// bearer token for a deployment that layers its own auth in front of the
// protocol (authentication itself remains out of this module's scope).
func WithHeader(key string, values ...string) Option {
	return func(c *dialConfig) {
		if c.header == nil {
			c.header = make(map[string][]string)
		}
		c.header[key] = values
	}
}

// ResolveURL validates that rawURL names a ws:// or wss:// endpoint and
// returns its parsed form. The driver never speaks to anything else —
// handshake negotiation for other schemes is explicitly out of scope.
func ResolveURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, mould.NewError(mould.Other, fmt.Errorf("parse endpoint url: %w", err))
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, mould.NewReasonError(mould.Other, fmt.Sprintf("unsupported scheme %q, want ws or wss", u.Scheme))
	}
	return u, nil
}

// Dial resolves rawURL, performs the WebSocket handshake, and returns a
// ready-to-use Transport. The handshake itself (HTTP Upgrade negotiation)
// is the out-of-scope collaborator named in the specification; Dial's job
// is only to configure and invoke it.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*transport.Transport, error) {
	u, err := ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}

	cfg := &dialConfig{
		handshakeTimeout: DefaultHandshakeTimeout,
		readBufferSize:   DefaultReadBufferSize,
		writeBufferSize:  DefaultWriteBufferSize,
	}
	for _, o := range opts {
		o(cfg)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.handshakeTimeout,
		ReadBufferSize:   cfg.readBufferSize,
		WriteBufferSize:  cfg.writeBufferSize,
	}
	if cfg.tlsInsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in, dev use only
	}

	header := make(map[string][]string, len(cfg.header)+1)
	for k, v := range cfg.header {
		header[k] = v
	}
	header["User-Agent"] = []string{buildinfo.UserAgent()}

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, mould.NewError(mould.AsyncWebSocketError, fmt.Errorf("dial %s: %w", u, err))
	}

	return transport.New(conn, cfg.logger), nil
}
