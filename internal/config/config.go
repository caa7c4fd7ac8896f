// Package config loads the relay server's configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay server and its clients.
type Config struct {
	// Addr is the listen address for the HTTP/WebSocket server.
	Addr string `validate:"required,hostname_port"`

	// LogFormat selects the slog handler: "text" or "json".
	LogFormat string `validate:"oneof=text json"`

	// SendBuffer is the per-connection outbound frame buffer size.
	SendBuffer int `validate:"gt=0"`

	// UpgradeRate caps WebSocket upgrade requests per second per client IP.
	UpgradeRate float64 `validate:"gt=0"`

	// WriteTimeout bounds a single WebSocket write.
	WriteTimeout time.Duration `validate:"gt=0"`

	// ProbeInterval is the client's reachability polling interval.
	ProbeInterval time.Duration `validate:"gt=0"`

	// ProbeTimeout bounds a single reachability probe request.
	ProbeTimeout time.Duration `validate:"gt=0"`
}

// New loads configuration from environment variables, applying defaults for
// anything unset. It terminates the process on invalid configuration.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:          envOr("RELAY_ADDR", ":8080"),
		LogFormat:     envOr("LOG_FORMAT", "text"),
		SendBuffer:    envIntOr("RELAY_SEND_BUFFER", 256),
		UpgradeRate:   envFloatOr("RELAY_UPGRADE_RATE", 10),
		WriteTimeout:  envDurationOr("RELAY_WRITE_TIMEOUT", 10*time.Second),
		ProbeInterval: envDurationOr("RELAY_PROBE_INTERVAL", 2*time.Second),
		ProbeTimeout:  envDurationOr("RELAY_PROBE_TIMEOUT", 2*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Ignoring non-numeric %s=%q", key, v)
		return fallback
	}
	return n
}

func envFloatOr(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Ignoring non-numeric %s=%q", key, v)
		return fallback
	}
	return f
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Ignoring unparsable %s=%q", key, v)
		return fallback
	}
	return d
}
