package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	config := DefaultServerConfig()

	assert.Equal(t, "localhost", config.Server.Address)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "info", config.Server.LogLevel)
	assert.Equal(t, 11, config.Game.StartingChips)
	assert.Equal(t, 30*time.Second, config.TurnTimeout())
	assert.Equal(t, 24*time.Hour, config.SessionMaxAge())
	assert.Equal(t, 15*time.Minute, config.PruneInterval())
	assert.NoError(t, config.Validate())
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	config, err := LoadServerConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig(), config)
}

func TestLoadServerConfigFromFile(t *testing.T) {
	content := `
server {
  address   = "0.0.0.0"
  port      = 9000
  log_level = "debug"
}

game {
  starting_chips       = 9
  turn_timeout_seconds = 60
}
`
	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadServerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", config.GetServerAddress())
	assert.Equal(t, "debug", config.Server.LogLevel)
	assert.Equal(t, 9, config.Game.StartingChips)
	assert.Equal(t, time.Minute, config.TurnTimeout())

	// Unset values fall back to defaults.
	assert.Equal(t, 24*time.Hour, config.SessionMaxAge())
	assert.Equal(t, 15*time.Minute, config.PruneInterval())
}

func TestLoadServerConfigInvalidHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte("server {"), 0o644))

	_, err := LoadServerConfig(path)
	assert.Error(t, err)
}

func TestServerConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"port too low", func(c *ServerConfig) { c.Server.Port = 0 }},
		{"port too high", func(c *ServerConfig) { c.Server.Port = 70000 }},
		{"no starting chips", func(c *ServerConfig) { c.Game.StartingChips = 0 }},
		{"no turn timeout", func(c *ServerConfig) { c.Game.TurnTimeoutSeconds = 0 }},
		{"no max age", func(c *ServerConfig) { c.Game.SessionMaxAgeHours = 0 }},
		{"no prune interval", func(c *ServerConfig) { c.Game.PruneIntervalMinutes = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultServerConfig()
			tc.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}
