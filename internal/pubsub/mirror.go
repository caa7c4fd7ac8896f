package pubsub

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nfrund/relay/internal/channel"
	"github.com/nfrund/relay/internal/wire"
)

// Mirror republishes every message dispatched on a WebSocket channel onto the
// pub/sub bus, including the synthesized connect/disconnect lifecycle
// messages. Server-side modules subscribe to the bus instead of registering
// listeners on the transport layer.
type Mirror struct {
	pub Publisher
}

// NewMirror creates a mirror publishing to pub.
func NewMirror(pub Publisher) *Mirror {
	return &Mirror{pub: pub}
}

// Attach registers a wildcard listener on ch that forwards each dispatched
// message to the bus. Every forwarded message carries the channel name and a
// unique event ID in its metadata.
func (m *Mirror) Attach(ch *channel.Channel) {
	name := ch.Name()
	ch.On(wire.Wildcard, func(msg wire.Message, _ channel.Conn) {
		payload, err := wire.Encode(msg)
		if err != nil {
			slog.Error("mirror failed to encode message", "channel", name, "topic", msg.Topic, "error", err)
			return
		}

		busMsg := Message{
			Topic:   msg.Topic,
			Channel: name,
			Payload: payload,
			Metadata: map[string]string{
				"event_id": uuid.NewString(),
			},
		}
		if err := m.pub.Publish(context.Background(), busMsg); err != nil {
			slog.Error("mirror failed to publish message", "channel", name, "topic", msg.Topic, "error", err)
		}
	})
}
