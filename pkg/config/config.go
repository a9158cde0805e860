// Package config loads and validates the tracker configuration from a YAML
// file with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete tracker configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Game     GameConfig     `yaml:"game"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Database DatabaseConfig `yaml:"database"`
	Relay    RelayConfig    `yaml:"relay"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// GameConfig configures the game server to poll.
type GameConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	PollInterval  Duration `yaml:"poll_interval"`
	QueryAttempts int           `yaml:"query_attempts"`
	QueryTimeout  Duration `yaml:"query_timeout"`
}

// TrackerConfig configures the presence engine.
type TrackerConfig struct {
	AFKThreshold   Duration `yaml:"afk_threshold"`
	GracePolls     int           `yaml:"grace_polls"`
	FlushInterval  Duration `yaml:"flush_interval"`
	FlushTimeout   Duration `yaml:"flush_timeout"`
	VolatileFields []string      `yaml:"volatile_fields"`
}

// DatabaseConfig configures the durable store backend.
type DatabaseConfig struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// DSN is the Postgres connection string or the SQLite file path.
	DSN string `yaml:"dsn"`

	MaxOpenConns int `yaml:"max_open_conns"`
}

// RelayConfig configures the legacy aggregator relay.
type RelayConfig struct {
	Enabled     bool          `yaml:"enabled"`
	URL         string        `yaml:"url"`
	Key         string        `yaml:"key"`
	Timeout     Duration `yaml:"timeout"`
	DownTimeout Duration `yaml:"down_timeout"`
}

// LoadConfig reads, expands and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no game
// server set. Callers must fill in Game.Host.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} references with their environment values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Server.Address = ":" + port
		} else {
			cfg.Server.Address = ":8080"
		}
	}
	if cfg.Game.Port == 0 {
		cfg.Game.Port = 27015
	}
	if cfg.Game.PollInterval == 0 {
		cfg.Game.PollInterval = Duration(60 * time.Second)
	}
	if cfg.Game.QueryAttempts == 0 {
		cfg.Game.QueryAttempts = 3
	}
	if cfg.Game.QueryTimeout == 0 {
		cfg.Game.QueryTimeout = Duration(5 * time.Second)
	}
	if cfg.Tracker.AFKThreshold == 0 {
		cfg.Tracker.AFKThreshold = Duration(5 * time.Minute)
	}
	if cfg.Tracker.GracePolls == 0 {
		cfg.Tracker.GracePolls = 2
	}
	if cfg.Tracker.FlushInterval == 0 {
		cfg.Tracker.FlushInterval = Duration(10 * time.Minute)
	}
	if cfg.Tracker.FlushTimeout == 0 {
		cfg.Tracker.FlushTimeout = Duration(30 * time.Second)
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 5
	}
	if cfg.Relay.Timeout == 0 {
		cfg.Relay.Timeout = Duration(10 * time.Second)
	}
	if cfg.Relay.DownTimeout == 0 {
		cfg.Relay.DownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Game.Host == "" {
		return fmt.Errorf("game.host is required")
	}
	if c.Game.Port <= 0 || c.Game.Port > 65535 {
		return fmt.Errorf("game.port %d out of range", c.Game.Port)
	}
	if c.Tracker.FlushInterval <= c.Game.PollInterval {
		return fmt.Errorf("tracker.flush_interval (%s) must be longer than game.poll_interval (%s)",
			c.Tracker.FlushInterval, c.Game.PollInterval)
	}
	switch c.Database.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Relay.Enabled {
		if c.Relay.URL == "" {
			return fmt.Errorf("relay.url is required when relay is enabled")
		}
		if c.Relay.Key == "" {
			return fmt.Errorf("relay.key is required when relay is enabled")
		}
	}
	return nil
}
