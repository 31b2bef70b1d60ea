package client

import (
	"time"

	"go.uber.org/zap"
)

// Config controls how the SDK talks to the server.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080". The SDK
	// appends /api/v1 paths itself.
	BaseURL string

	// Token is the bearer token for writes. Reads (snapshots, room lists,
	// live channels) work without one.
	Token string

	HTTPTimeout      time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// Logger defaults to a nop logger when nil.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults; set BaseURL before use.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:      30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 30 * time.Second
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = 10 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 10 * time.Second
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}
