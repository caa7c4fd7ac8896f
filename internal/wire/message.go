// Package wire defines the frame format exchanged between channels and their
// clients: one JSON object per text frame, carrying a mandatory "topic" field
// plus arbitrary topic-specific payload fields.
package wire

import (
	"encoding/json"
	"errors"
)

// TopicField is the JSON key every frame must carry.
const TopicField = "topic"

// Wildcard is the reserved subscription topic that matches every message.
const Wildcard = "#"

// Reserved topics synthesized by channels and clients on connection lifecycle
// transitions. They are never sent by applications directly.
const (
	TopicConnect    = "connect"
	TopicDisconnect = "disconnect"
)

var (
	// ErrMalformedPayload indicates a frame that does not parse as a JSON object.
	ErrMalformedPayload = errors.New("wire: malformed payload")

	// ErrMissingTopic indicates a frame that parsed but has no usable topic field.
	ErrMissingTopic = errors.New("wire: missing topic field")

	// ErrBroadcastRejected indicates an outbound message without a topic.
	ErrBroadcastRejected = errors.New("wire: broadcast rejected, message has no topic")

	// ErrNoConnection indicates a send attempted while no connection is live.
	ErrNoConnection = errors.New("wire: no active connection")
)

// Message is the decoded form of a frame. Topic routes the message; Fields
// holds every other top-level key of the JSON object.
type Message struct {
	Topic  string
	Fields map[string]any
}

// New constructs a message for the given topic. The fields map may be nil.
func New(topic string, fields map[string]any) Message {
	return Message{Topic: topic, Fields: fields}
}

// Get returns a payload field by name.
func (m Message) Get(key string) (any, bool) {
	v, ok := m.Fields[key]
	return v, ok
}

// Decode parses a raw text frame into a Message. A frame that is not a JSON
// object yields ErrMalformedPayload; a JSON object without a non-empty string
// "topic" yields ErrMissingTopic. Neither error is fatal to the caller: the
// frame is simply not dispatched.
func Decode(raw []byte) (Message, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return Message{}, ErrMalformedPayload
	}

	topicVal, ok := obj[TopicField]
	if !ok {
		return Message{}, ErrMissingTopic
	}
	topic, ok := topicVal.(string)
	if !ok || topic == "" {
		return Message{}, ErrMissingTopic
	}

	delete(obj, TopicField)
	return Message{Topic: topic, Fields: obj}, nil
}

// Encode serializes a Message back into its wire form. Topic presence is the
// caller's responsibility (Broadcast and Send enforce it); Encode itself is
// total over well-formed messages.
func Encode(msg Message) ([]byte, error) {
	obj := make(map[string]any, len(msg.Fields)+1)
	for k, v := range msg.Fields {
		obj[k] = v
	}
	obj[TopicField] = msg.Topic
	return json.Marshal(obj)
}
