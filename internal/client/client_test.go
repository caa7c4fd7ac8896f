package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/channel"
	"github.com/nfrund/relay/internal/client"
	"github.com/nfrund/relay/internal/wire"
)

// testBackend is a minimal channel endpoint: it accepts WebSocket upgrades on
// "/", answers /check according to its reachable flag, and lets tests inspect
// or drop the accepted connections.
type testBackend struct {
	reachable atomic.Bool
	accepts   atomic.Int32
	dropFirst atomic.Bool

	mu       sync.Mutex
	inbound  []string
	outbound chan []byte
}

func newTestBackend(t *testing.T) (*testBackend, *httptest.Server) {
	b := &testBackend{outbound: make(chan []byte, 16)}
	b.reachable.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		if b.reachable.Load() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		n := b.accepts.Add(1)

		if n == 1 && b.dropFirst.Load() {
			// Simulate the server going away right after the first accept.
			_ = conn.Close(websocket.StatusGoingAway, "restarting")
			return
		}

		ctx := r.Context()
		go func() {
			for payload := range b.outbound {
				_ = conn.Write(ctx, websocket.MessageText, payload)
			}
		}()
		for {
			_, raw, err := conn.Read(ctx)
			if err != nil {
				return
			}
			b.mu.Lock()
			b.inbound = append(b.inbound, string(raw))
			b.mu.Unlock()
		}
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return b, ts
}

func (b *testBackend) inboundFrames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.inbound...)
}

func TestClientConnectAndDispatch(t *testing.T) {
	backend, ts := newTestBackend(t)

	c, err := client.New(ts.URL, "/")
	require.NoError(t, err)
	defer c.Close()

	var mu sync.Mutex
	var topics []string
	c.On(wire.Wildcard, func(msg wire.Message, _ channel.Conn) {
		mu.Lock()
		defer mu.Unlock()
		topics = append(topics, msg.Topic)
	})

	require.NoError(t, c.Connect(context.Background()))

	mu.Lock()
	gotConnect := len(topics) > 0 && topics[0] == wire.TopicConnect
	mu.Unlock()
	assert.True(t, gotConnect, "local connect message should fire on open")

	// A frame pushed by the server reaches topic listeners.
	var stateMsgs atomic.Int32
	c.On("state.update", func(msg wire.Message, _ channel.Conn) {
		stateMsgs.Add(1)
	})
	backend.outbound <- []byte(`{"topic":"state.update","hp":5}`)

	assert.Eventually(t, func() bool { return stateMsgs.Load() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestClientSend(t *testing.T) {
	t.Run("send stamps the topic onto the payload", func(t *testing.T) {
		backend, ts := newTestBackend(t)

		c, err := client.New(ts.URL, "/")
		require.NoError(t, err)
		defer c.Close()
		require.NoError(t, c.Connect(context.Background()))

		require.NoError(t, c.Send("chat.message", map[string]any{"content": "hi"}))

		assert.Eventually(t, func() bool {
			return len(backend.inboundFrames()) == 1
		}, 2*time.Second, 10*time.Millisecond)
		assert.JSONEq(t, `{"topic":"chat.message","content":"hi"}`, backend.inboundFrames()[0])
	})

	t.Run("send without a connection is reported, not fatal", func(t *testing.T) {
		_, ts := newTestBackend(t)

		c, err := client.New(ts.URL, "/")
		require.NoError(t, err)
		defer c.Close()

		err = c.Send("chat.message", nil)
		assert.ErrorIs(t, err, wire.ErrNoConnection)
	})
}

func TestClientClose(t *testing.T) {
	t.Run("explicit close is not treated as an outage", func(t *testing.T) {
		backend, ts := newTestBackend(t)

		c, err := client.New(ts.URL, "/",
			client.WithProbeInterval(10*time.Millisecond),
		)
		require.NoError(t, err)

		var disconnects atomic.Int32
		c.On(wire.TopicDisconnect, func(wire.Message, channel.Conn) {
			disconnects.Add(1)
		})

		require.NoError(t, c.Connect(context.Background()))
		require.NoError(t, c.Close())

		// No disconnect dispatch, no probing, no re-dial.
		time.Sleep(100 * time.Millisecond)
		assert.Zero(t, disconnects.Load())
		assert.Equal(t, int32(1), backend.accepts.Load())
	})
}

func TestClientReconnect(t *testing.T) {
	t.Run("root channel probes and reconnects after a drop", func(t *testing.T) {
		backend, ts := newTestBackend(t)
		backend.dropFirst.Store(true)
		backend.reachable.Store(false)

		c, err := client.New(ts.URL, "/",
			client.WithProbeInterval(10*time.Millisecond),
			client.WithProbeTimeout(time.Second),
		)
		require.NoError(t, err)
		defer c.Close()

		var disconnects atomic.Int32
		c.On(wire.TopicDisconnect, func(wire.Message, channel.Conn) {
			disconnects.Add(1)
		})
		var reconnects atomic.Int32
		c.OnReconnect(func() { reconnects.Add(1) })

		require.NoError(t, c.Connect(context.Background()))

		// The backend drops the first connection immediately; the client
		// should notice and dispatch its local disconnect message.
		assert.Eventually(t, func() bool { return disconnects.Load() == 1 },
			2*time.Second, 10*time.Millisecond)

		// While unreachable, no reconnect happens.
		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, reconnects.Load())

		// Once the probe succeeds the handler runs exactly once and a new
		// connection is established.
		backend.reachable.Store(true)
		assert.Eventually(t, func() bool { return backend.accepts.Load() >= 2 },
			2*time.Second, 10*time.Millisecond)
		assert.Eventually(t, func() bool { return reconnects.Load() == 1 },
			2*time.Second, 10*time.Millisecond)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(1), reconnects.Load(), "reconnect handler must fire exactly once per outage")
	})

	t.Run("non-root channel does not auto-reconnect", func(t *testing.T) {
		backend, ts := newTestBackend(t)
		backend.dropFirst.Store(true)

		c, err := client.New(ts.URL, "/game",
			client.WithProbeInterval(10*time.Millisecond),
		)
		require.NoError(t, err)
		defer c.Close()

		var disconnects atomic.Int32
		c.On(wire.TopicDisconnect, func(wire.Message, channel.Conn) {
			disconnects.Add(1)
		})

		require.NoError(t, c.Connect(context.Background()))
		assert.Eventually(t, func() bool { return disconnects.Load() == 1 },
			2*time.Second, 10*time.Millisecond)

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(1), backend.accepts.Load(), "non-root channels stay down until the root reloads them")
	})
}
