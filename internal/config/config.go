// Package config holds the bridge runtime configuration.
package config

import (
	"fmt"
	"sync/atomic"
)

// Config stores all parameters gathered from CLI flags or interactive prompts.
type Config struct {
	BGBHost string // BGB emulator host
	BGBPort int    // BGB link-cable listen port
	WSPort  int    // WebSocket listen port for the browser

	// Verbose toggles per-packet debug logging. It is owned here and read
	// atomically by the link transports it is passed into.
	Verbose atomic.Bool
}

// Default returns a Config with the conventional BGB and browser ports.
func Default() *Config {
	return &Config{
		BGBHost: "127.0.0.1",
		BGBPort: 8765,
		WSPort:  8767,
	}
}

// WSAddr returns the listen address for the WebSocket server.
func (c *Config) WSAddr() string {
	return fmt.Sprintf(":%d", c.WSPort)
}
