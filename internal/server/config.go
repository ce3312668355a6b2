package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings contains session rule and housekeeping configuration
type GameSettings struct {
	StartingChips        int `hcl:"starting_chips,optional"`
	TurnTimeoutSeconds   int `hcl:"turn_timeout_seconds,optional"`
	SessionMaxAgeHours   int `hcl:"session_max_age_hours,optional"`
	PruneIntervalMinutes int `hcl:"prune_interval_minutes,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: GameSettings{
			StartingChips:        11,
			TurnTimeoutSeconds:   30,
			SessionMaxAgeHours:   24,
			PruneIntervalMinutes: 15,
		},
	}
}

// LoadServerConfig loads server configuration from an HCL file, falling back
// to defaults when the file does not exist.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	defaults := DefaultServerConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Game.StartingChips == 0 {
		config.Game.StartingChips = defaults.Game.StartingChips
	}
	if config.Game.TurnTimeoutSeconds == 0 {
		config.Game.TurnTimeoutSeconds = defaults.Game.TurnTimeoutSeconds
	}
	if config.Game.SessionMaxAgeHours == 0 {
		config.Game.SessionMaxAgeHours = defaults.Game.SessionMaxAgeHours
	}
	if config.Game.PruneIntervalMinutes == 0 {
		config.Game.PruneIntervalMinutes = defaults.Game.PruneIntervalMinutes
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.StartingChips < 1 {
		return fmt.Errorf("starting chips must be positive, got %d", c.Game.StartingChips)
	}
	if c.Game.TurnTimeoutSeconds < 1 {
		return fmt.Errorf("turn timeout must be positive, got %d", c.Game.TurnTimeoutSeconds)
	}
	if c.Game.SessionMaxAgeHours < 1 {
		return fmt.Errorf("session max age must be positive, got %d", c.Game.SessionMaxAgeHours)
	}
	if c.Game.PruneIntervalMinutes < 1 {
		return fmt.Errorf("prune interval must be positive, got %d", c.Game.PruneIntervalMinutes)
	}
	return nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// TurnTimeout returns the configured turn timeout as a duration.
func (c *ServerConfig) TurnTimeout() time.Duration {
	return time.Duration(c.Game.TurnTimeoutSeconds) * time.Second
}

// SessionMaxAge returns the configured session retention window.
func (c *ServerConfig) SessionMaxAge() time.Duration {
	return time.Duration(c.Game.SessionMaxAgeHours) * time.Hour
}

// PruneInterval returns how often abandoned sessions are garbage collected.
func (c *ServerConfig) PruneInterval() time.Duration {
	return time.Duration(c.Game.PruneIntervalMinutes) * time.Minute
}
