// Package channel implements the multiplexing core of the relay server: a
// named Channel groups live connections with their topic subscriptions and
// routes every decoded frame to the listeners registered for its topic.
package channel

// Conn is the transport a channel sees for one connected peer. The websocket
// layer adapts its real connections to this interface; tests substitute fakes.
type Conn interface {
	// IsOpen reports whether the underlying transport can still deliver frames.
	IsOpen() bool

	// Send queues one encoded frame for delivery. Delivery is best effort;
	// an error means the frame was not accepted.
	Send(payload []byte) error

	// Close tears down the underlying transport.
	Close() error
}
