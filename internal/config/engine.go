package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvEngineEscalationTimeout = "VIGIL_ENGINE_ESCALATION_TIMEOUT"
	EnvEngineDigestType        = "VIGIL_ENGINE_DIGEST_TYPE"
	EnvEngineDigestInterval    = "VIGIL_ENGINE_DIGEST_INTERVAL"
	EnvEngineDigestWindow      = "VIGIL_ENGINE_DIGEST_WINDOW"
	EnvEngineDigestConcurrency = "VIGIL_ENGINE_DIGEST_CONCURRENCY"
	EnvEngineSchedulerEnabled  = "VIGIL_ENGINE_SCHEDULER_ENABLED"
	EnvEngineArchiveEnabled    = "VIGIL_ENGINE_ARCHIVE_ENABLED"
	EnvEngineIngestAttempts    = "VIGIL_ENGINE_INGEST_ATTEMPTS"
	EnvEngineIngestBackoff     = "VIGIL_ENGINE_INGEST_BACKOFF"
)

// EngineConfig holds evaluation, escalation, ingestion, and digest scheduling settings.
type EngineConfig struct {
	EscalationTimeout string `toml:"escalation_timeout"`
	DigestType        string `toml:"digest_type"`
	DigestInterval    string `toml:"digest_interval"`
	DigestWindow      string `toml:"digest_window"`
	DigestConcurrency int    `toml:"digest_concurrency"`
	SchedulerEnabled  bool   `toml:"scheduler_enabled"`
	ArchiveEnabled    bool   `toml:"archive_enabled"`
	IngestAttempts    int    `toml:"ingest_attempts"`
	IngestBackoff     string `toml:"ingest_backoff"`
}

// EscalationTimeoutDuration bounds a single escalation hook invocation.
func (c *EngineConfig) EscalationTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.EscalationTimeout)
	return d
}

// DigestIntervalDuration is the scheduler tick and the period boundary alignment.
func (c *EngineConfig) DigestIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.DigestInterval)
	return d
}

// DigestWindowDuration is the trailing length of each digest period.
func (c *EngineConfig) DigestWindowDuration() time.Duration {
	d, _ := time.ParseDuration(c.DigestWindow)
	return d
}

// IngestBackoffDuration is the base delay between ingest retries.
func (c *EngineConfig) IngestBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.IngestBackoff)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EngineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Boolean switches are only ever turned on.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.EscalationTimeout != "" {
		c.EscalationTimeout = overlay.EscalationTimeout
	}
	if overlay.DigestType != "" {
		c.DigestType = overlay.DigestType
	}
	if overlay.DigestInterval != "" {
		c.DigestInterval = overlay.DigestInterval
	}
	if overlay.DigestWindow != "" {
		c.DigestWindow = overlay.DigestWindow
	}
	if overlay.DigestConcurrency != 0 {
		c.DigestConcurrency = overlay.DigestConcurrency
	}
	if overlay.SchedulerEnabled {
		c.SchedulerEnabled = true
	}
	if overlay.ArchiveEnabled {
		c.ArchiveEnabled = true
	}
	if overlay.IngestAttempts != 0 {
		c.IngestAttempts = overlay.IngestAttempts
	}
	if overlay.IngestBackoff != "" {
		c.IngestBackoff = overlay.IngestBackoff
	}
}

func (c *EngineConfig) loadDefaults() {
	if c.EscalationTimeout == "" {
		c.EscalationTimeout = "10s"
	}
	if c.DigestType == "" {
		c.DigestType = "overnight"
	}
	if c.DigestInterval == "" {
		c.DigestInterval = "24h"
	}
	if c.DigestWindow == "" {
		c.DigestWindow = c.DigestInterval
	}
	if c.DigestConcurrency == 0 {
		c.DigestConcurrency = 4
	}
	if c.IngestAttempts == 0 {
		c.IngestAttempts = 3
	}
	if c.IngestBackoff == "" {
		c.IngestBackoff = "500ms"
	}
}

func (c *EngineConfig) loadEnv() {
	if v := os.Getenv(EnvEngineEscalationTimeout); v != "" {
		c.EscalationTimeout = v
	}
	if v := os.Getenv(EnvEngineDigestType); v != "" {
		c.DigestType = v
	}
	if v := os.Getenv(EnvEngineDigestInterval); v != "" {
		c.DigestInterval = v
	}
	if v := os.Getenv(EnvEngineDigestWindow); v != "" {
		c.DigestWindow = v
	}
	if v := os.Getenv(EnvEngineDigestConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DigestConcurrency = n
		}
	}
	if v := os.Getenv(EnvEngineSchedulerEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SchedulerEnabled = b
		}
	}
	if v := os.Getenv(EnvEngineArchiveEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ArchiveEnabled = b
		}
	}
	if v := os.Getenv(EnvEngineIngestAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IngestAttempts = n
		}
	}
	if v := os.Getenv(EnvEngineIngestBackoff); v != "" {
		c.IngestBackoff = v
	}
}

func (c *EngineConfig) validate() error {
	if d, err := time.ParseDuration(c.EscalationTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid escalation_timeout: %q", c.EscalationTimeout)
	}
	if c.DigestType == "" {
		return fmt.Errorf("digest_type required")
	}
	if d, err := time.ParseDuration(c.DigestInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid digest_interval: %q", c.DigestInterval)
	}
	if d, err := time.ParseDuration(c.DigestWindow); err != nil || d <= 0 {
		return fmt.Errorf("invalid digest_window: %q", c.DigestWindow)
	}
	if c.DigestConcurrency < 1 {
		return fmt.Errorf("digest_concurrency must be positive")
	}
	if c.IngestAttempts < 1 {
		return fmt.Errorf("ingest_attempts must be positive")
	}
	if _, err := time.ParseDuration(c.IngestBackoff); err != nil {
		return fmt.Errorf("invalid ingest_backoff: %w", err)
	}
	return nil
}
