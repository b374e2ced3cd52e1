package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Hub.TypingTTL)
	assert.Equal(t, 256, cfg.Websocket.SendQueueSize)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 8080
hub:
  typing_ttl: 5s
auth:
  tokens:
    token-1:
      userId: u1
      displayName: alice
logging:
  level: debug
  format: pretty
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Hub.TypingTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)

	identity, ok := cfg.Auth.Tokens["token-1"]
	require.True(t, ok)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "alice", identity.DisplayName)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(LoadOptions{Path: "/does/not/exist.yaml"})
	assert.Error(t, err)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

	_, err := Load(LoadOptions{Path: path})
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOARDCAST_SERVER_HOST", "hub.internal")
	t.Setenv("BOARDCAST_SERVER_PORT", "9000")
	t.Setenv("BOARDCAST_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "hub.internal", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"negative read timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }},
		{"zero send queue", func(c *Config) { c.Websocket.SendQueueSize = 0 }},
		{"zero typing ttl", func(c *Config) { c.Hub.TypingTTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var ce *ConfigError
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorAs(t, err, &ce)
		})
	}
}
