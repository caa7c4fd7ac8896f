// Package pubsub is the in-process message backplane. Traffic arriving on a
// WebSocket channel is mirrored onto the bus so server-side modules can
// subscribe to it without touching the transport layer.
package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
// It is intentionally simple to act as a wrapper for raw data.
type Message struct {
	// Topic identifies the subject the message belongs to (e.g., "chat.message").
	Topic string
	// Channel is the WebSocket channel the message was observed on (e.g., "/").
	Channel string
	// Payload contains the raw message data in its wire form.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context (e.g., event IDs).
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the Pub/Sub system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the Pub/Sub system.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with the handler.
	// It blocks until the context is canceled or an irrecoverable error occurs.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
