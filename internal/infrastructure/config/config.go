// Package config loads host configuration from the environment, with an
// optional TOML file overlay for deployments that prefer files.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all host configuration.
type Config struct {
	Engine  EngineConfig
	Logging LogConfig
	Debug   DebugConfig
}

// EngineConfig holds render engine configuration.
type EngineConfig struct {
	GPU       bool   `envconfig:"ENGINE_GPU" toml:"gpu" default:"false"`
	AssetRoot string `envconfig:"ENGINE_ASSET_ROOT" toml:"asset_root" default:"."`
	FrameRate int    `envconfig:"ENGINE_FRAME_RATE" toml:"frame_rate" default:"60"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" default:"info"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" default:"false"`
}

// DebugConfig holds the optional debug endpoint configuration.
type DebugConfig struct {
	// MetricsAddr is the listen address for the metrics/status server.
	// Empty disables it.
	MetricsAddr string `envconfig:"DEBUG_METRICS_ADDR" toml:"metrics_addr" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment, then overlays values
// from a TOML file. File values win over environment values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			GPU:       false,
			AssetRoot: ".",
			FrameRate: 60,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate checks values that envconfig cannot express.
func (c *Config) Validate() error {
	if c.Engine.FrameRate <= 0 || c.Engine.FrameRate > 240 {
		return fmt.Errorf("frame rate out of range: %d", c.Engine.FrameRate)
	}
	return nil
}
