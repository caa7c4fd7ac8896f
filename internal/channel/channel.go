package channel

import (
	"fmt"
	"log/slog"

	"github.com/nfrund/relay/internal/wire"
)

// RootName is the distinguished root channel, auto-created at server start.
// Clients bound to it are the ones that auto-reconnect.
const RootName = "/"

// Channel is one named multiplexing unit: a connection registry plus a topic
// listener registry. Channels never share state with each other.
type Channel struct {
	name      string
	conns     *ConnRegistry
	listeners *ListenerRegistry
}

// New creates a channel with the given path-like name.
func New(name string) *Channel {
	return &Channel{
		name:      name,
		conns:     NewConnRegistry(),
		listeners: NewListenerRegistry(),
	}
}

// Name returns the channel's endpoint path.
func (c *Channel) Name() string {
	return c.name
}

// On registers a listener for a topic. See ListenerRegistry.On.
func (c *Channel) On(topic string, fn Listener) bool {
	return c.listeners.On(topic, fn)
}

// Off removes listeners for a topic. See ListenerRegistry.Off.
func (c *Channel) Off(topic string, fns ...Listener) {
	c.listeners.Off(topic, fns...)
}

// Attach registers a newly accepted connection, synthesizes the connect
// lifecycle message and dispatches it, then returns the assigned identifier.
// The transport layer feeds subsequent frames through HandleFrame and calls
// Detach once the connection closes.
func (c *Channel) Attach(conn Conn) string {
	id := c.conns.Register(conn)
	slog.Info("connection attached", "channel", c.name, "wsid", id)

	c.Dispatch(wire.New(wire.TopicConnect, map[string]any{"wsid": id}), conn)
	return id
}

// Detach synthesizes and dispatches the disconnect lifecycle message for the
// identified connection, then removes it from the registry. Detaching an
// unknown identifier is a no-op.
func (c *Channel) Detach(id string) {
	conn, ok := c.conns.Get(id)
	if !ok {
		return
	}
	slog.Info("connection detached", "channel", c.name, "wsid", id)

	c.Dispatch(wire.New(wire.TopicDisconnect, map[string]any{"wsid": id}), conn)
	c.conns.Unregister(id)
}

// HandleFrame decodes one raw inbound frame from the identified connection
// and dispatches it. Malformed or topic-less frames are logged and dropped;
// they never reach a listener and never terminate the channel.
func (c *Channel) HandleFrame(id string, raw []byte) {
	msg, err := wire.Decode(raw)
	if err != nil {
		slog.Warn("dropping undecodable frame",
			"channel", c.name, "wsid", id, "error", err)
		return
	}

	origin, _ := c.conns.Get(id)
	c.Dispatch(msg, origin)
}

// Broadcast encodes msg once and sends it to every live connection on the
// channel, evicting dead connections as it goes. A message without a topic is
// rejected with ErrBroadcastRejected. Delivery is best effort: a connection
// that closes mid-iteration is skipped, and send failures are logged, not
// retried.
func (c *Channel) Broadcast(msg wire.Message) error {
	if msg.Topic == "" {
		slog.Error("broadcast rejected: message has no topic", "channel", c.name)
		return wire.ErrBroadcastRejected
	}

	payload, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("encoding broadcast for channel %s: %w", c.name, err)
	}

	c.conns.ForEachLive(func(id string, conn Conn) {
		if err := conn.Send(payload); err != nil {
			slog.Warn("broadcast send failed",
				"channel", c.name, "wsid", id, "error", err)
		}
	})
	return nil
}

// ListenerCount returns the number of listeners registered for a topic.
func (c *Channel) ListenerCount(topic string) int {
	return c.listeners.Count(topic)
}

// ConnCount returns the number of registered connections.
func (c *Channel) ConnCount() int {
	return c.conns.Len()
}

// CloseConns closes every live connection on the channel. Used during server
// shutdown; the transport close handlers drive the usual Detach path.
func (c *Channel) CloseConns() {
	c.conns.ForEachLive(func(id string, conn Conn) {
		if err := conn.Close(); err != nil {
			slog.Warn("error closing connection", "channel", c.name, "wsid", id, "error", err)
		}
	})
}
