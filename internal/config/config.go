// Package config loads layered TOML configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/vigil/pkg/broker"
	"github.com/JaimeStill/vigil/pkg/cache"
	"github.com/JaimeStill/vigil/pkg/database"
	"github.com/JaimeStill/vigil/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvVigilEnv             = "VIGIL_ENV"
	EnvVigilConfig          = "VIGIL_CONFIG"
	EnvVigilShutdownTimeout = "VIGIL_SHUTDOWN_TIMEOUT"
	EnvVigilVersion         = "VIGIL_VERSION"
)

var databaseEnv = &database.Env{
	Host:             "VIGIL_DB_HOST",
	Port:             "VIGIL_DB_PORT",
	Name:             "VIGIL_DB_NAME",
	User:             "VIGIL_DB_USER",
	Password:         "VIGIL_DB_PASSWORD",
	SSLMode:          "VIGIL_DB_SSL_MODE",
	MaxOpenConns:     "VIGIL_DB_MAX_OPEN_CONNS",
	MaxIdleConns:     "VIGIL_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime:  "VIGIL_DB_CONN_MAX_LIFETIME",
	ConnTimeout:      "VIGIL_DB_CONN_TIMEOUT",
	StatementTimeout: "VIGIL_DB_STATEMENT_TIMEOUT",
}

var storageEnv = &storage.Env{
	Enabled:          "VIGIL_STORAGE_ENABLED",
	ContainerName:    "VIGIL_STORAGE_CONTAINER_NAME",
	ConnectionString: "VIGIL_STORAGE_CONNECTION_STRING",
}

var brokerEnv = &broker.Env{
	Enabled:          "VIGIL_BROKER_ENABLED",
	Brokers:          "VIGIL_BROKER_BROKERS",
	GroupID:          "VIGIL_BROKER_GROUP_ID",
	EventsTopic:      "VIGIL_BROKER_EVENTS_TOPIC",
	EscalationsTopic: "VIGIL_BROKER_ESCALATIONS_TOPIC",
	WriteTimeout:     "VIGIL_BROKER_WRITE_TIMEOUT",
	MaxWait:          "VIGIL_BROKER_MAX_WAIT",
}

var cacheEnv = &cache.Env{
	Enabled:   "VIGIL_CACHE_ENABLED",
	Addr:      "VIGIL_CACHE_ADDR",
	Password:  "VIGIL_CACHE_PASSWORD",
	DB:        "VIGIL_CACHE_DB",
	KeyPrefix: "VIGIL_CACHE_KEY_PREFIX",
	ClaimTTL:  "VIGIL_CACHE_CLAIM_TTL",
}

// Config is the root configuration for the Vigil service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	Broker          broker.Config   `toml:"broker"`
	Cache           cache.Config    `toml:"cache"`
	API             APIConfig       `toml:"api"`
	Engine          EngineConfig    `toml:"engine"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the VIGIL_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvVigilEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (VIGIL_CONFIG or config.toml, if present), applies
// any config.{VIGIL_ENV}.toml overlay, and finalizes all values. With no files
// present, defaults and environment variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	base := BaseConfigFile
	if v := os.Getenv(EnvVigilConfig); v != "" {
		base = v
	}

	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Broker.Merge(&overlay.Broker)
	c.Cache.Merge(&overlay.Cache)
	c.API.Merge(&overlay.API)
	c.Engine.Merge(&overlay.Engine)
}

// Finalize applies defaults, environment overrides, and validation to every section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Broker.Finalize(brokerEnv); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if err := c.Cache.Finalize(cacheEnv); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Engine.Finalize(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.Engine.ArchiveEnabled && !c.Storage.Enabled {
		return fmt.Errorf("engine: archive_enabled requires storage.enabled")
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvVigilShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvVigilVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvVigilEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
