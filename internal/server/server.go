// Package server hosts the relay HTTP/WebSocket server: one echo instance
// exposing every created channel at its own endpoint path, plus the /check
// reachability probe used by reconnecting clients.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/relay/internal/channel"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/middleware"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/wire"
)

// Server holds the dependencies for the relay server.
type Server struct {
	E      *echo.Echo
	Cfg    *config.Config
	PubSub *pubsub.WatermillBridge

	mu       sync.RWMutex
	channels map[string]*channel.Channel
	mirror   *pubsub.Mirror
}

// New creates a new Server instance with the root channel already created.
func New(cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.Recover())

	setupErrorHandling(e)

	bus := pubsub.NewWatermillBridge()

	s := &Server{
		E:        e,
		Cfg:      cfg,
		PubSub:   bus,
		channels: make(map[string]*channel.Channel),
		mirror:   pubsub.NewMirror(bus),
	}

	// The probe endpoint answers as long as the process accepts connections.
	// No body, success status only.
	check := func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}
	e.GET("/check", check)
	e.HEAD("/check", check)

	// The root channel always exists and is the one reconnecting clients bind to.
	if _, err := s.CreateChannel(channel.RootName); err != nil {
		// Creation only fails on duplicates; a fresh server has none.
		panic(err)
	}

	return s
}

// CreateChannel creates and routes a new channel at the given endpoint path.
// Channel names are path-like and unique per server.
func (s *Server) CreateChannel(name string) (*channel.Channel, error) {
	if !strings.HasPrefix(name, "/") {
		return nil, fmt.Errorf("channel name %q must start with /", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.channels[name]; exists {
		return nil, fmt.Errorf("channel already exists: %s", name)
	}

	ch := channel.New(name)
	s.channels[name] = ch
	s.mirror.Attach(ch)

	s.E.GET(name, s.serveWS(ch), middleware.RateLimiter(s.Cfg.UpgradeRate))
	slog.Info("channel created", "channel", name)
	return ch, nil
}

// Channel returns the channel registered under name.
func (s *Server) Channel(name string) (*channel.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[name]
	return ch, ok
}

// resolve picks the addressed channel; the root channel is the default.
func (s *Server) resolve(name []string) (*channel.Channel, error) {
	target := channel.RootName
	if len(name) > 0 && name[0] != "" {
		target = name[0]
	}
	ch, ok := s.Channel(target)
	if !ok {
		return nil, fmt.Errorf("unknown channel: %s", target)
	}
	return ch, nil
}

// On registers a listener for a topic on the addressed channel (root when
// omitted). Reports whether the listener was newly added.
func (s *Server) On(topic string, fn channel.Listener, channelName ...string) (bool, error) {
	ch, err := s.resolve(channelName)
	if err != nil {
		return false, err
	}
	return ch.On(topic, fn), nil
}

// Off removes listeners for a topic on the addressed channel. An empty
// channelName addresses the root channel. Without explicit listeners the
// whole topic entry is dropped.
func (s *Server) Off(topic string, channelName string, fns ...channel.Listener) error {
	var name []string
	if channelName != "" {
		name = append(name, channelName)
	}
	ch, err := s.resolve(name)
	if err != nil {
		return err
	}
	ch.Off(topic, fns...)
	return nil
}

// Broadcast sends msg to every live connection on the addressed channel (root
// when omitted).
func (s *Server) Broadcast(msg wire.Message, channelName ...string) error {
	ch, err := s.resolve(channelName)
	if err != nil {
		return err
	}
	return ch.Broadcast(msg)
}

// setupErrorHandling installs an HTTP error handler that logs unhandled
// errors with a stack trace instead of leaking them to the client.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			if !c.Response().Committed {
				_ = c.JSON(httpErr.Code, map[string]any{"message": httpErr.Message})
			}
			return
		}

		slog.Error("Internal Server Error (Unhandled)",
			"error", err,
			"path", c.Request().URL.Path,
			"stack_trace", string(debug.Stack()),
		)
		if !c.Response().Committed {
			_ = c.NoContent(http.StatusInternalServerError)
		}
	}
}
