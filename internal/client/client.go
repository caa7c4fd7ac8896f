// Package client implements the relay peer of a server channel: it maintains
// one WebSocket connection to a named channel and mirrors the server's
// topic-dispatch model for locally registered listeners. Clients bound to the
// root channel probe the server's /check endpoint after a disconnect until it
// becomes reachable again, then reconnect.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nfrund/relay/internal/channel"
	"github.com/nfrund/relay/internal/wire"
)

const (
	defaultProbeInterval = 2 * time.Second
	defaultProbeTimeout  = 2 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithProbeInterval overrides the reachability polling interval.
func WithProbeInterval(d time.Duration) Option {
	return func(c *Client) { c.probeInterval = d }
}

// WithProbeTimeout overrides the per-probe request timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) { c.probeTimeout = d }
}

// WithDialer overrides the WebSocket dialer, mainly for tests.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client is one outbound connection to a server channel.
type Client struct {
	baseURL string // e.g. "http://localhost:8080"
	name    string // channel endpoint path, e.g. "/"

	// engine provides the same listener registry and dispatch semantics the
	// server channel uses: wildcard first, registration order, isolation.
	engine *channel.Channel

	probeInterval time.Duration
	probeTimeout  time.Duration
	dialer        *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	onReconnect func()

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a client bound to the given channel of the server at baseURL.
// The client is not connected until Connect is called.
func New(baseURL, channelName string, opts ...Option) (*Client, error) {
	if !strings.HasPrefix(channelName, "/") {
		return nil, fmt.Errorf("channel name %q must start with /", channelName)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		name:          channelName,
		engine:        channel.New(channelName),
		probeInterval: defaultProbeInterval,
		probeTimeout:  defaultProbeTimeout,
		dialer:        websocket.DefaultDialer,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// On registers a listener for a topic; see the server-side contract. The
// origin argument passed to listeners is always nil on the client.
func (c *Client) On(topic string, fn channel.Listener) bool {
	return c.engine.On(topic, fn)
}

// Off removes listeners for a topic; with none given, all of them.
func (c *Client) Off(topic string, fns ...channel.Listener) {
	c.engine.Off(topic, fns...)
}

// OnReconnect sets the handler invoked once per outage when the server
// becomes reachable again. The client re-establishes its connection after
// the handler returns. Without a handler it simply reconnects.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = fn
}

// Connect dials the channel endpoint and starts the read loop. On success a
// local connect message is dispatched to wildcard and "connect" listeners.
func (c *Client) Connect(ctx context.Context) error {
	wsURL, err := c.wsURL()
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dialing %s: %w", wsURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("connected to channel", "channel", c.name, "url", wsURL)
	c.engine.Dispatch(wire.New(wire.TopicConnect, nil), nil)

	go c.readLoop(conn)
	return nil
}

// Send stamps the topic onto the payload fields and transmits one frame.
// Without a live connection it reports wire.ErrNoConnection instead of
// crashing; the caller decides whether to retry.
func (c *Client) Send(topic string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		slog.Error("send without connection", "channel", c.name, "topic", topic)
		return wire.ErrNoConnection
	}

	raw, err := wire.Encode(wire.New(topic, fields))
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// Close tears the client down: the connection is closed and any pending
// reachability probing stops. Deliberate teardown is not an outage, so no
// disconnect message is dispatched and no reconnect is attempted. The client
// cannot be reused afterwards.
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// readLoop consumes frames until the connection drops, mirroring the server
// channel's decode-then-dispatch path for each frame.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		msg, decodeErr := wire.Decode(raw)
		if decodeErr != nil {
			slog.Warn("dropping undecodable frame", "channel", c.name, "error", decodeErr)
			continue
		}
		c.engine.Dispatch(msg, nil)
	}
}

// handleDisconnect dispatches the local disconnect message and, for the root
// channel, starts probing for the server to come back. Non-root channels do
// not auto-reconnect: their lifecycle is driven by the root channel's
// reconnect handler.
func (c *Client) handleDisconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	// A stale read loop from a previous connection must not tear down the
	// current one.
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	slog.Info("disconnected from channel", "channel", c.name, "cause", cause)
	c.engine.Dispatch(wire.New(wire.TopicDisconnect, nil), nil)

	if c.name != channel.RootName {
		return
	}
	if c.ctx.Err() != nil {
		return
	}
	go c.reconnectLoop()
}

// reconnectLoop waits for the server to answer its /check probe, then runs
// the reconnect handler exactly once and re-establishes the connection. A
// failed reconnect attempt goes back to probing.
func (c *Client) reconnectLoop() {
	prober := newProber(c.baseURL+"/check", c.probeInterval, c.probeTimeout)

	handlerFired := false
	for {
		if err := prober.waitReachable(c.ctx); err != nil {
			slog.Debug("reachability probing cancelled", "channel", c.name, "error", err)
			return
		}

		c.mu.Lock()
		handler := c.onReconnect
		c.mu.Unlock()
		if handler != nil && !handlerFired {
			handler()
			handlerFired = true
		}

		if err := c.Connect(c.ctx); err != nil {
			slog.Warn("reconnect attempt failed", "channel", c.name, "error", err)
			continue
		}
		return
	}
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = c.name
	return u.String(), nil
}
