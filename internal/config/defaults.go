package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultAPIAddr            = ":9090"
	DefaultRelayAddr          = ":8765"
	DefaultShutdownTimeout    = 10 * time.Second
	DefaultMaxInvalidMessages = 5
	DefaultMaxMessageSize     = 64 << 10
	DefaultWriteTimeout       = 5 * time.Second
	DefaultRateLimitScope     = "connection"
	DefaultRateLimit          = 10
	DefaultRateWindow         = 5 * time.Second
	DefaultRoomDescription    = "A fun place to chat."
	DefaultRoomMaxUsers       = 100
	DefaultMetricsInterval    = 60 * time.Second
	DefaultAPIRateLimit       = 20
	DefaultLogLevel           = "info"
)

// TokenEnv overrides an empty auth.token.
const TokenEnv = "CHAT_AUTH_TOKEN"

func (c *Config) applyDefaults() {
	if c.Server.APIAddr == "" {
		c.Server.APIAddr = DefaultAPIAddr
	}
	if c.Server.RelayAddr == "" {
		c.Server.RelayAddr = DefaultRelayAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Auth.Token == "" {
		c.Auth.Token = os.Getenv(TokenEnv)
	}

	if c.Relay.MaxInvalidMessages == 0 {
		c.Relay.MaxInvalidMessages = DefaultMaxInvalidMessages
	}
	if c.Relay.MaxMessageSize == 0 {
		c.Relay.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Relay.WriteTimeout == 0 {
		c.Relay.WriteTimeout = DefaultWriteTimeout
	}

	if c.RateLimit.Scope == "" {
		c.RateLimit.Scope = DefaultRateLimitScope
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = DefaultRateLimit
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = DefaultRateWindow
	}

	if c.Rooms.DefaultDescription == "" {
		c.Rooms.DefaultDescription = DefaultRoomDescription
	}
	if c.Rooms.DefaultMaxUsers == 0 {
		c.Rooms.DefaultMaxUsers = DefaultRoomMaxUsers
	}

	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = DefaultMetricsInterval
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultAPIRateLimit
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
