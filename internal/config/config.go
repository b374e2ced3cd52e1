package config

import (
	"time"

	"boardcast/internal/logging"
	"boardcast/pkg/domain"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Websocket WebsocketConfig `json:"websocket" yaml:"websocket"`
	Hub       HubConfig       `json:"hub" yaml:"hub"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Logging   logging.Config  `json:"logging" yaml:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// WebsocketConfig represents websocket connection configuration
type WebsocketConfig struct {
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout"`
	PingInterval   time.Duration `json:"ping_interval" yaml:"ping_interval"`
	MaxMessageSize int64         `json:"max_message_size" yaml:"max_message_size"`
	SendQueueSize  int           `json:"send_queue_size" yaml:"send_queue_size"`
}

// HubConfig represents hub behavior configuration
type HubConfig struct {
	TypingTTL   time.Duration `json:"typing_ttl" yaml:"typing_ttl"`
	SendTimeout time.Duration `json:"send_timeout" yaml:"send_timeout"`
}

// AuthConfig maps bearer tokens to identities. Board access decisions
// happen upstream; this only resolves who is on the other end.
type AuthConfig struct {
	Tokens map[string]domain.Identity `json:"tokens" yaml:"tokens"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Websocket: WebsocketConfig{
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 512 * 1024, // 512KB
			SendQueueSize:  256,
		},
		Hub: HubConfig{
			TypingTTL:   3 * time.Second,
			SendTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{
			Tokens: map[string]domain.Identity{},
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.ReadTimeout < 0 {
		return NewConfigError("server.read_timeout", "timeout cannot be negative")
	}

	if c.Server.WriteTimeout < 0 {
		return NewConfigError("server.write_timeout", "timeout cannot be negative")
	}

	if c.Websocket.SendQueueSize <= 0 {
		return NewConfigError("websocket.send_queue_size", "must be positive")
	}

	if c.Hub.TypingTTL <= 0 {
		return NewConfigError("hub.typing_ttl", "must be positive")
	}

	return nil
}
