package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valed-dm/chatroom-server/internal/ratelimit"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Token) == "" {
		return fmt.Errorf("auth.token is required (or set %s)", TokenEnv)
	}
	if c.Server.APIAddr == c.Server.RelayAddr {
		return errors.New("server.api_addr and server.relay_addr must differ")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must be >= 0")
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return errors.New("tls.cert_file and tls.key_file must be set together")
	}

	if c.Relay.MaxInvalidMessages < 1 {
		return errors.New("relay.max_invalid_messages must be >= 1")
	}
	if c.Relay.MaxMessageSize < 1 {
		return errors.New("relay.max_message_size must be >= 1")
	}

	if _, err := ratelimit.ParseScope(c.RateLimit.Scope); err != nil {
		return fmt.Errorf("rate_limit.scope: %w", err)
	}
	if c.RateLimit.Limit < 1 {
		return errors.New("rate_limit.limit must be >= 1")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate_limit.window must be > 0")
	}

	if c.Rooms.DefaultMaxUsers < 1 {
		return errors.New("rooms.default_max_users must be >= 1")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses log.level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
