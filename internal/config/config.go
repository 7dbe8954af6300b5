// Package config loads the server's YAML configuration.
package config

import "time"

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	TLS       TLSConfig       `yaml:"tls"`
	Auth      AuthConfig      `yaml:"auth"`
	Relay     RelayConfig     `yaml:"relay"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	Database  DatabaseConfig  `yaml:"database"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	APIAddr         string        `yaml:"api_addr"`
	RelayAddr       string        `yaml:"relay_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// TLSConfig selects how both listeners serve TLS. With no cert files and
// SelfSigned unset, listeners are plain TCP.
type TLSConfig struct {
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	SelfSigned bool   `yaml:"self_signed"`
	Hostname   string `yaml:"hostname"`
}

// Enabled reports whether TLS is configured.
func (t TLSConfig) Enabled() bool {
	return t.SelfSigned || (t.CertFile != "" && t.KeyFile != "")
}

// AuthConfig holds the shared bearer secret.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// RelayConfig tunes the per-connection read loop.
type RelayConfig struct {
	MaxInvalidMessages int           `yaml:"max_invalid_messages"`
	MaxMessageSize     int64         `yaml:"max_message_size"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	EchoToSender       bool          `yaml:"echo_to_sender"`
}

// RateLimitConfig is the sliding-window message limit.
type RateLimitConfig struct {
	Scope  string        `yaml:"scope"`
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// RoomsConfig holds defaults for room creation.
type RoomsConfig struct {
	DefaultDescription string `yaml:"default_description"`
	DefaultMaxUsers    int    `yaml:"default_max_users"`
}

// DatabaseConfig points at the SQLite file. Empty keeps rooms in memory.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig controls the periodic metrics log line.
type MetricsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// APIConfig tunes the REST surface.
type APIConfig struct {
	// RateLimit is requests per second per client IP. Unset or 0 takes the
	// default; a negative value disables the limiter.
	RateLimit float64 `yaml:"rate_limit"`
}

// LogConfig sets the slog level.
type LogConfig struct {
	Level string `yaml:"level"`
}
