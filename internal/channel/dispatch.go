package channel

import (
	"log/slog"

	"github.com/nfrund/relay/internal/wire"
)

// Dispatch routes one decoded message through the channel's listener registry:
// first every wildcard ("#") listener in registration order, then every
// listener registered for msg.Topic in registration order. A message matching
// neither set is logged at debug level and dropped.
func (c *Channel) Dispatch(msg wire.Message, origin Conn) {
	wildcard := c.listeners.Snapshot(wire.Wildcard)

	var topical []Listener
	if msg.Topic != wire.Wildcard {
		topical = c.listeners.Snapshot(msg.Topic)
	}

	if len(wildcard) == 0 && len(topical) == 0 {
		slog.Debug("unhandled topic", "channel", c.name, "topic", msg.Topic)
		return
	}

	for _, fn := range wildcard {
		c.invoke(fn, msg, origin)
	}
	for _, fn := range topical {
		c.invoke(fn, msg, origin)
	}
}

// invoke runs a single listener, isolating panics so a misbehaving listener
// cannot suppress delivery to its siblings or take down the channel.
func (c *Channel) invoke(fn Listener, msg wire.Message, origin Conn) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("listener panicked during dispatch",
				"channel", c.name, "topic", msg.Topic, "panic", r)
		}
	}()
	fn(msg, origin)
}
