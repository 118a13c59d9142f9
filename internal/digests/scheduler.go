package digests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TenantSource lists organizations that should receive a digest for a window.
type TenantSource interface {
	Tenants(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// TenantFunc adapts a function to TenantSource.
type TenantFunc func(ctx context.Context, since time.Time) ([]uuid.UUID, error)

func (f TenantFunc) Tenants(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	return f(ctx, since)
}

// UnionTenants merges the tenants of every source, deduplicated and sorted.
func UnionTenants(sources ...TenantSource) TenantSource {
	return TenantFunc(func(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
		var all []uuid.UUID
		for _, s := range sources {
			ids, err := s.Tenants(ctx, since)
			if err != nil {
				return nil, err
			}
			all = append(all, ids...)
		}
		slices.SortFunc(all, func(a, b uuid.UUID) int {
			return slices.Compare(a[:], b[:])
		})
		return slices.Compact(all), nil
	})
}

// SchedulerConfig controls digest cadence.
type SchedulerConfig struct {
	DigestType  string
	Interval    time.Duration
	Window      time.Duration
	Concurrency int
}

// Scheduler compiles a digest for every tenant once per interval.
type Scheduler struct {
	compiler *Compiler
	tenants  TenantSource
	cfg      SchedulerConfig
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler. A zero Window uses the Interval.
func NewScheduler(compiler *Compiler, tenants TenantSource, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if cfg.Window <= 0 {
		cfg.Window = cfg.Interval
	}
	cfg.Concurrency = max(cfg.Concurrency, 1)

	return &Scheduler{
		compiler: compiler,
		tenants:  tenants,
		cfg:      cfg,
		logger:   logger.With("system", "scheduler"),
	}
}

// Period returns the window that ends at the most recent interval boundary before now.
func (s *Scheduler) Period(now time.Time) (start, end time.Time) {
	end = now.UTC().Truncate(s.cfg.Interval)
	return end.Add(-s.cfg.Window), end
}

// Run compiles on every interval tick until ctx is cancelled. A failed tick
// is logged and retried on the next one.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.cfg.Interval, "window", s.cfg.Window)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx, time.Now()); err != nil && ctx.Err() == nil {
				s.logger.Error("digest run incomplete", "error", err)
			}
		}
	}
}

// RunOnce compiles the period ending at the last boundary before now for all
// tenants. Tenants already digested for the period are skipped.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) error {
	start, end := s.Period(now)

	tenants, err := s.tenants.Tenants(ctx, start)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	var (
		mu       sync.Mutex
		failures []error
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)

	for _, org := range tenants {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			d, err := s.compiler.Compile(ctx, CompileCommand{
				OrganizationID: org,
				DigestType:     s.cfg.DigestType,
				PeriodStart:    start,
				PeriodEnd:      end,
			})
			switch {
			case errors.Is(err, ErrDuplicate):
				s.logger.Debug("digest already compiled", "organization_id", org, "period_start", start)
			case err != nil:
				mu.Lock()
				failures = append(failures, fmt.Errorf("organization %s: %w", org, err))
				mu.Unlock()
			default:
				s.logger.Info("digest compiled", "id", d.ID, "organization_id", org, "total_events", d.TotalEvents)
			}
			return nil
		})
	}

	g.Wait()
	return errors.Join(failures...)
}
