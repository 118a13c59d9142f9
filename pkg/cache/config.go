package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds Redis connection settings.
// When Enabled is false no client is created and claims are skipped.
type Config struct {
	Enabled   bool   `toml:"enabled"`
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
	ClaimTTL  string `toml:"claim_ttl"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled   string
	Addr      string
	Password  string
	DB        string
	KeyPrefix string
	ClaimTTL  string
}

// ClaimTTLDuration returns ClaimTTL as a time.Duration.
func (c *Config) ClaimTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.ClaimTTL)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Enabled is only ever switched on.
func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.DB != 0 {
		c.DB = overlay.DB
	}
	if overlay.KeyPrefix != "" {
		c.KeyPrefix = overlay.KeyPrefix
	}
	if overlay.ClaimTTL != "" {
		c.ClaimTTL = overlay.ClaimTTL
	}
}

func (c *Config) loadDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "vigil"
	}
	if c.ClaimTTL == "" {
		c.ClaimTTL = "24h"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = b
			}
		}
	}
	if env.Addr != "" {
		if v := os.Getenv(env.Addr); v != "" {
			c.Addr = v
		}
	}
	if env.Password != "" {
		if v := os.Getenv(env.Password); v != "" {
			c.Password = v
		}
	}
	if env.DB != "" {
		if v := os.Getenv(env.DB); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.DB = n
			}
		}
	}
	if env.KeyPrefix != "" {
		if v := os.Getenv(env.KeyPrefix); v != "" {
			c.KeyPrefix = v
		}
	}
	if env.ClaimTTL != "" {
		if v := os.Getenv(env.ClaimTTL); v != "" {
			c.ClaimTTL = v
		}
	}
}

func (c *Config) validate() error {
	if d, err := time.ParseDuration(c.ClaimTTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid claim_ttl: %q", c.ClaimTTL)
	}
	if c.DB < 0 {
		return fmt.Errorf("db must be non-negative")
	}
	return nil
}
