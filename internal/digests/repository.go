package digests

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/pagination"
	"github.com/JaimeStill/vigil/pkg/query"
	"github.com/JaimeStill/vigil/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a digest repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "digests"),
		pagination: pagination,
	}
}

func (r *repo) Insert(ctx context.Context, d Digest) (*Digest, error) {
	q := `
		INSERT INTO digests(
			organization_id, digest_type, period_start, period_end, summary_text,
			total_events, suppressed_count, escalated_count, needs_review_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, organization_id, digest_type, period_start, period_end, summary_text,
				  total_events, suppressed_count, escalated_count, needs_review_count, generated_at`

	args := []any{
		d.OrganizationID,
		d.DigestType,
		d.PeriodStart.UTC(),
		d.PeriodEnd.UTC(),
		d.SummaryText,
		d.TotalEvents,
		d.SuppressedCount,
		d.EscalatedCount,
		d.NeedsReviewCount,
	}

	stored, err := repository.QueryOne(ctx, r.db, q, args, scanDigest)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("digest stored",
		"id", stored.ID,
		"organization_id", stored.OrganizationID,
		"digest_type", stored.DigestType,
		"total_events", stored.TotalEvents,
	)
	return &stored, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Digest, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDigest)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Digest], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "SummaryText")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count digests: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDigest)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}
