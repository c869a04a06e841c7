// Package config provides configuration loading for mintchatd.
//
// Configuration is loaded from an optional YAML file, overridden by
// MINT_-prefixed environment variables, with hardcoded defaults applied
// last.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/smarterpayouts/mint/internal/completion"
)

// Storage drivers accepted by StorageConfig.Driver.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config holds the complete mintchatd configuration.
type Config struct {
	Server     ServerConfig      `koanf:"server"`
	Logging    LoggingConfig     `koanf:"logging"`
	Completion completion.Config `koanf:"completion"`
	NATS       NATSConfig        `koanf:"nats"`
	Storage    StorageConfig     `koanf:"storage"`
	Chat       ChatConfig        `koanf:"chat"`
	Queue      QueueConfig       `koanf:"queue"`
	NPV        NPVConfig         `koanf:"npv"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// NATSConfig holds hand-off notification transport configuration.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// StorageConfig selects the transcript store backend.
type StorageConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// ChatConfig holds per-session conversation settings.
type ChatConfig struct {
	TypingDelayMS  int     `koanf:"typing_delay_ms"`
	MatchThreshold float64 `koanf:"match_threshold"`
	Streaming      bool    `koanf:"streaming"`
}

// QueueConfig holds live-chat hand-off queue settings. Zero values defer to
// the queue package defaults.
type QueueConfig struct {
	InitialPosition  int      `koanf:"initial_position"`
	InitialWaitSec   int      `koanf:"initial_wait_sec"`
	PositionInterval int      `koanf:"position_interval_sec"`
	ConnectDelaySec  int      `koanf:"connect_delay_sec"`
	Roster           []string `koanf:"roster"`
}

// NPVConfig holds present-value engine settings.
type NPVConfig struct {
	Workers    int `koanf:"workers"`
	TimeoutSec int `koanf:"timeout_sec"`
}

// Load loads configuration from the YAML file at configPath (skipped when
// empty or missing), then overrides with MINT_-prefixed environment
// variables.
//
// Environment variables map section_field, split on the first underscore:
//
//	MINT_SERVER_PORT         -> server.port
//	MINT_COMPLETION_BASE_URL -> completion.base_url
//	MINT_STORAGE_DRIVER      -> storage.driver
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("MINT_", ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, "MINT_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	defaults := completion.DefaultConfig()
	if cfg.Completion.BaseURL == "" {
		cfg.Completion.BaseURL = defaults.BaseURL
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = defaults.Model
	}
	if cfg.Completion.APIKey == "" {
		cfg.Completion.APIKey = defaults.APIKey
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageMemory
	}
	if cfg.Storage.Driver == StorageSQLite && cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/mint.db"
	}
	if cfg.Chat.TypingDelayMS == 0 {
		cfg.Chat.TypingDelayMS = 900
	}
	if cfg.NPV.Workers == 0 {
		cfg.NPV.Workers = 4
	}
	if cfg.NPV.TimeoutSec == 0 {
		cfg.NPV.TimeoutSec = 10
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path required for sqlite driver")
		}
	default:
		return fmt.Errorf("invalid storage driver: %q", c.Storage.Driver)
	}

	if c.Chat.TypingDelayMS < 0 {
		return fmt.Errorf("typing delay must be non-negative")
	}
	if c.Chat.MatchThreshold < 0 || c.Chat.MatchThreshold > 1 {
		return fmt.Errorf("match threshold must be in [0, 1]")
	}
	if c.NPV.Workers < 1 {
		return fmt.Errorf("npv workers must be positive")
	}

	return c.Completion.Validate()
}
