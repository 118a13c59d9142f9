package digests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/pkg/storage"
)

// DecisionSource reads a tenant's decisions for one window.
type DecisionSource interface {
	Snapshot(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*decisions.Window, error)
}

// Archiver stores rendered digests in blob storage.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Compiler builds and stores digests.
type Compiler struct {
	source  DecisionSource
	store   Store
	archive Archiver
	logger  *slog.Logger
}

// NewCompiler creates a Compiler. A nil archive disables blob archiving.
func NewCompiler(source DecisionSource, store Store, archive Archiver, logger *slog.Logger) *Compiler {
	return &Compiler{
		source:  source,
		store:   store,
		archive: archive,
		logger:  logger.With("system", "compiler"),
	}
}

// Compile aggregates the tenant's decisions in [cmd.PeriodStart, cmd.PeriodEnd)
// and stores one digest. An empty window still produces a digest. Nothing is
// stored when any query fails.
func (c *Compiler) Compile(ctx context.Context, cmd CompileCommand) (*Digest, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	start, end := cmd.PeriodStart.UTC(), cmd.PeriodEnd.UTC()

	window, err := c.source.Snapshot(ctx, cmd.OrganizationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("compile digest: %w", err)
	}

	summary := Summarize(window.Digestable)
	d := Digest{
		OrganizationID:  cmd.OrganizationID,
		DigestType:      cmd.DigestType,
		PeriodStart:     start,
		PeriodEnd:       end,
		SummaryText:     Render(cmd.DigestType, start, end, summary),
		TotalEvents:     summary.Total,
		SuppressedCount: summary.Suppressed,
	}

	// An empty digest carries zero counters throughout.
	if summary.Total > 0 {
		d.EscalatedCount = window.Tally[decisions.Escalate]
		d.NeedsReviewCount = window.Tally[decisions.NeedsReview]
	}

	stored, err := c.store.Insert(ctx, d)
	if err != nil {
		return nil, err
	}

	c.archiveDigest(ctx, stored)
	return stored, nil
}

// ArchiveKey is the blob key a digest is archived under.
func ArchiveKey(d *Digest) string {
	return fmt.Sprintf("digests/%s/%s/%s.txt",
		d.OrganizationID,
		d.DigestType,
		d.PeriodStart.UTC().Format(time.RFC3339),
	)
}

// Archived reads the archived summary of d.
func (c *Compiler) Archived(ctx context.Context, d *Digest) ([]byte, error) {
	if c.archive == nil {
		return nil, ErrNotArchived
	}

	data, err := c.archive.Get(ctx, ArchiveKey(d))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotArchived
	}
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return data, nil
}

func (c *Compiler) archiveDigest(ctx context.Context, d *Digest) {
	if c.archive == nil {
		return
	}

	key := ArchiveKey(d)
	if err := c.archive.Put(ctx, key, []byte(d.SummaryText), "text/plain; charset=utf-8"); err != nil {
		c.logger.Error("digest archive failed", "id", d.ID, "key", key, "error", err)
		return
	}
	c.logger.Info("digest archived", "id", d.ID, "key", key)
}

func (cmd CompileCommand) validate() error {
	switch {
	case cmd.OrganizationID == uuid.Nil:
		return fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	case strings.TrimSpace(cmd.DigestType) == "":
		return fmt.Errorf("%w: digest_type required", ErrInvalidInput)
	case cmd.PeriodStart.IsZero() || cmd.PeriodEnd.IsZero():
		return fmt.Errorf("%w: period_start and period_end required", ErrInvalidInput)
	case !cmd.PeriodStart.Before(cmd.PeriodEnd):
		return fmt.Errorf("%w: period_start must be before period_end", ErrInvalidInput)
	}
	return nil
}
