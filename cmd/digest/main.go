// Command digest compiles digests once and exits. Run it from an external
// scheduler when the in-process scheduler is disabled.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/api"
	"github.com/JaimeStill/vigil/internal/config"
	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/digests"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/internal/infrastructure"
	"github.com/JaimeStill/vigil/internal/policies"
)

func main() {
	var (
		org        = flag.String("org", "", "Organization ID (default: every tenant)")
		digestType = flag.String("type", "", "Digest type (default: engine.digest_type)")
		start      = flag.String("start", "", "Period start, RFC3339 (requires -org and -end)")
		end        = flag.String("end", "", "Period end, RFC3339")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}
	if *digestType != "" {
		cfg.Engine.DigestType = *digestType
	}

	if err := run(cfg, *org, *start, *end); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, org, start, end string) error {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return err
	}
	if err := infra.Start(); err != nil {
		return err
	}
	defer infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())

	infra.Lifecycle.WaitForStartup()
	if !infra.Database.Ready() {
		return errors.New("database unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := infra.Logger.With("module", "digest")
	db := infra.Database.Connection()
	page := cfg.API.Pagination

	var archive digests.Archiver
	if cfg.Engine.ArchiveEnabled && infra.Storage != nil {
		archive = infra.Storage
	}
	compiler := digests.NewCompiler(
		decisions.New(db, logger, page),
		digests.New(db, logger, page),
		archive,
		logger,
	)

	if start != "" || end != "" {
		cmd, err := compileCommand(org, cfg.Engine.DigestType, start, end)
		if err != nil {
			return err
		}
		d, err := compiler.Compile(ctx, cmd)
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		fmt.Printf("digest %s: %d events, %d suppressed\n", d.ID, d.TotalEvents, d.SuppressedCount)
		return nil
	}

	tenants := api.Tenants(policies.New(db, logger, page), events.New(db, logger, page))
	if org != "" {
		id, err := uuid.Parse(org)
		if err != nil {
			return fmt.Errorf("invalid -org: %w", err)
		}
		tenants = digests.TenantFunc(func(context.Context, time.Time) ([]uuid.UUID, error) {
			return []uuid.UUID{id}, nil
		})
	}

	sched := digests.NewScheduler(compiler, tenants, digests.SchedulerConfig{
		DigestType:  cfg.Engine.DigestType,
		Interval:    cfg.Engine.DigestIntervalDuration(),
		Window:      cfg.Engine.DigestWindowDuration(),
		Concurrency: cfg.Engine.DigestConcurrency,
	}, logger)

	return sched.RunOnce(ctx, time.Now())
}

func compileCommand(org, digestType, start, end string) (digests.CompileCommand, error) {
	var cmd digests.CompileCommand

	id, err := uuid.Parse(org)
	if err != nil {
		return cmd, fmt.Errorf("invalid -org: %w", err)
	}
	ps, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return cmd, fmt.Errorf("invalid -start: %w", err)
	}
	pe, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return cmd, fmt.Errorf("invalid -end: %w", err)
	}

	return digests.CompileCommand{
		OrganizationID: id,
		DigestType:     digestType,
		PeriodStart:    ps,
		PeriodEnd:      pe,
	}, nil
}
