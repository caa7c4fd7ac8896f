package channel_test

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/channel"
)

// fakeConn is a controllable transport stand-in for registry and channel tests.
type fakeConn struct {
	mu     sync.Mutex
	open   bool
	sent   [][]byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{open: true}
}

func (f *fakeConn) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	f.sent = append(f.sent, buf)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closed = true
	return nil
}

func (f *fakeConn) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func TestConnRegistry(t *testing.T) {
	t.Run("identifiers are well formed and pairwise distinct", func(t *testing.T) {
		reg := channel.NewConnRegistry()
		pattern := regexp.MustCompile(`^[a-z0-9]{16}$`)

		seen := make(map[string]bool)
		for i := 0; i < 500; i++ {
			id := reg.Register(newFakeConn())
			require.Regexp(t, pattern, id)
			require.False(t, seen[id], "identifier %q issued twice", id)
			seen[id] = true
		}
		assert.Equal(t, 500, reg.Len())
	})

	t.Run("unregister removes the entry", func(t *testing.T) {
		reg := channel.NewConnRegistry()
		id := reg.Register(newFakeConn())

		reg.Unregister(id)
		_, ok := reg.Get(id)
		assert.False(t, ok)
		assert.Zero(t, reg.Len())
	})

	t.Run("unregister of unknown id is a no-op", func(t *testing.T) {
		reg := channel.NewConnRegistry()
		reg.Register(newFakeConn())

		reg.Unregister("nosuchidentifier")
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("ForEachLive visits open connections only", func(t *testing.T) {
		reg := channel.NewConnRegistry()
		alive := newFakeConn()
		dead := newFakeConn()
		aliveID := reg.Register(alive)
		reg.Register(dead)
		require.NoError(t, dead.Close())

		var visited []string
		reg.ForEachLive(func(id string, _ channel.Conn) {
			visited = append(visited, id)
		})

		assert.Equal(t, []string{aliveID}, visited)
	})

	t.Run("ForEachLive evicts dead connections", func(t *testing.T) {
		reg := channel.NewConnRegistry()
		reg.Register(newFakeConn())
		dead := newFakeConn()
		require.NoError(t, dead.Close())
		reg.Register(dead)

		reg.ForEachLive(func(string, channel.Conn) {})
		assert.Equal(t, 1, reg.Len(), "closed connection should be garbage collected")
	})

	t.Run("concurrent registration stays consistent", func(t *testing.T) {
		reg := channel.NewConnRegistry()
		const workers = 8
		const perWorker = 50

		ids := make(chan string, workers*perWorker)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					ids <- reg.Register(newFakeConn())
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[string]bool)
		for id := range ids {
			require.False(t, seen[id], "identifier %q issued twice", id)
			seen[id] = true
		}
		assert.Equal(t, workers*perWorker, reg.Len())
	})
}
