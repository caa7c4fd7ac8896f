package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/relay/internal/channel"
	"github.com/nfrund/relay/internal/middleware"
)

// wsConn adapts a coder/websocket connection to the channel.Conn transport
// interface. Writes go through a buffered send channel drained by a single
// writePump goroutine, so there is at most one writer per connection.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	// mu guards send against a concurrent Close; a nil send means the
	// connection is no longer usable.
	mu   sync.RWMutex
	send chan []byte
}

func newWSConn(conn *websocket.Conn, buffer int, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		conn:         conn,
		send:         make(chan []byte, buffer),
		writeTimeout: writeTimeout,
	}
}

// IsOpen reports whether the transport can still deliver frames.
func (c *wsConn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.send != nil
}

// Send enqueues one frame for the writePump. A full buffer means the client
// is lagging or stuck; the frame is dropped and an error returned rather than
// blocking the channel.
func (c *wsConn) Send(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return errors.New("connection closed")
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close marks the connection dead and tears down the underlying transport.
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send == nil {
		return nil
	}
	close(c.send)
	c.send = nil
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// writePump pumps frames from the send channel to the WebSocket connection.
func (c *wsConn) writePump() {
	for payload := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			slog.Error("WebSocket write error", "error", err)
			_ = c.Close()
			return
		}
	}
}

// serveWS returns the upgrade handler for one channel. The handler goroutine
// doubles as the connection's read loop, so frames from a single connection
// are decoded and dispatched sequentially, in arrival order.
func (s *Server) serveWS(ch *channel.Channel) echo.HandlerFunc {
	return func(c echo.Context) error {
		logger := middleware.FromContext(c.Request().Context())

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			logger.Error("Failed to upgrade connection to WebSocket", "channel", ch.Name(), "error", err)
			return err
		}

		wc := newWSConn(conn, s.Cfg.SendBuffer, s.Cfg.WriteTimeout)
		go wc.writePump()

		id := ch.Attach(wc)
		defer func() {
			_ = wc.Close()
			ch.Detach(id)
		}()

		for {
			_, raw, err := conn.Read(c.Request().Context())
			if err != nil {
				status := websocket.CloseStatus(err)
				if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
					logger.Info("WebSocket closed normally", "channel", ch.Name(), "wsid", id)
				} else if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
					logger.Warn("WebSocket read error", "channel", ch.Name(), "wsid", id, "error", err)
				}
				return nil
			}
			ch.HandleFrame(id, raw)
		}
	}
}
