package broker

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds Kafka connection and topic settings.
// When Enabled is false the broker is not constructed.
type Config struct {
	Enabled          bool     `toml:"enabled"`
	Brokers          []string `toml:"brokers"`
	GroupID          string   `toml:"group_id"`
	EventsTopic      string   `toml:"events_topic"`
	EscalationsTopic string   `toml:"escalations_topic"`
	WriteTimeout     string   `toml:"write_timeout"`
	MaxWait          string   `toml:"max_wait"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled          string
	Brokers          string
	GroupID          string
	EventsTopic      string
	EscalationsTopic string
	WriteTimeout     string
	MaxWait          string
}

// WriteTimeoutDuration returns WriteTimeout as a time.Duration.
func (c *Config) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	return d
}

// MaxWaitDuration returns MaxWait as a time.Duration.
func (c *Config) MaxWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxWait)
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
	if len(overlay.Brokers) > 0 {
		c.Brokers = overlay.Brokers
	}
	if overlay.GroupID != "" {
		c.GroupID = overlay.GroupID
	}
	if overlay.EventsTopic != "" {
		c.EventsTopic = overlay.EventsTopic
	}
	if overlay.EscalationsTopic != "" {
		c.EscalationsTopic = overlay.EscalationsTopic
	}
	if overlay.WriteTimeout != "" {
		c.WriteTimeout = overlay.WriteTimeout
	}
	if overlay.MaxWait != "" {
		c.MaxWait = overlay.MaxWait
	}
}

func (c *Config) loadDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.GroupID == "" {
		c.GroupID = "vigil"
	}
	if c.EventsTopic == "" {
		c.EventsTopic = "attention.events"
	}
	if c.EscalationsTopic == "" {
		c.EscalationsTopic = "attention.escalations"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "10s"
	}
	if c.MaxWait == "" {
		c.MaxWait = "500ms"
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
	if env.Brokers != "" {
		if v := os.Getenv(env.Brokers); v != "" {
			c.Brokers = ParseBrokers(v)
		}
	}
	if env.GroupID != "" {
		if v := os.Getenv(env.GroupID); v != "" {
			c.GroupID = v
		}
	}
	if env.EventsTopic != "" {
		if v := os.Getenv(env.EventsTopic); v != "" {
			c.EventsTopic = v
		}
	}
	if env.EscalationsTopic != "" {
		if v := os.Getenv(env.EscalationsTopic); v != "" {
			c.EscalationsTopic = v
		}
	}
	if env.WriteTimeout != "" {
		if v := os.Getenv(env.WriteTimeout); v != "" {
			c.WriteTimeout = v
		}
	}
	if env.MaxWait != "" {
		if v := os.Getenv(env.MaxWait); v != "" {
			c.MaxWait = v
		}
	}
}

func (c *Config) validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	if c.GroupID == "" {
		return fmt.Errorf("group_id required")
	}
	if c.EventsTopic == "" || c.EscalationsTopic == "" {
		return fmt.Errorf("events_topic and escalations_topic required")
	}
	if _, err := time.ParseDuration(c.WriteTimeout); err != nil {
		return fmt.Errorf("invalid write_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.MaxWait); err != nil {
		return fmt.Errorf("invalid max_wait: %w", err)
	}
	return nil
}

// ParseBrokers splits a comma-separated broker list, trimming whitespace and empties.
func ParseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
