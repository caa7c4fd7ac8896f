package main

import (
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/logging"
	"github.com/nfrund/relay/internal/server"
)

func main() {
	cfg := config.New()
	logging.New(cfg.LogFormat)

	// Create a new server instance. The root channel is routed automatically.
	s := server.New(cfg)

	// Start the server and block until shutdown.
	s.Start()
}
