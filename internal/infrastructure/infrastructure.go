// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, optional storage, broker,
// and cache) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/vigil/internal/config"
	"github.com/JaimeStill/vigil/pkg/broker"
	"github.com/JaimeStill/vigil/pkg/cache"
	"github.com/JaimeStill/vigil/pkg/database"
	"github.com/JaimeStill/vigil/pkg/lifecycle"
	"github.com/JaimeStill/vigil/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// Storage, Broker, and Cache are nil when disabled in configuration.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Broker    broker.System
	Cache     cache.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	infra := &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
	}

	if cfg.Storage.Enabled {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	}

	if cfg.Broker.Enabled {
		infra.Broker = broker.New(&cfg.Broker, logger)
	}

	if cfg.Cache.Enabled {
		infra.Cache = cache.New(&cfg.Cache, logger)
	}

	return infra, nil
}

// Claims returns the cache as a Claimer, or nil when the cache is disabled.
func (i *Infrastructure) Claims() cache.Claimer {
	if i.Cache == nil {
		return nil
	}
	return i.Cache
}

// Start registers all enabled infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	if i.Broker != nil {
		if err := i.Broker.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("broker start failed: %w", err)
		}
	}
	if i.Cache != nil {
		if err := i.Cache.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("cache start failed: %w", err)
		}
	}
	return nil
}
