package decisions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/pkg/pagination"
	"github.com/JaimeStill/vigil/pkg/query"
	"github.com/JaimeStill/vigil/pkg/repository"
)

const insertQ = `
	INSERT INTO attention_decisions(
		organization_id, attention_event_id, decision, reason, policy_id,
		confidence, uncertainty_notes, produced_by, input_refs
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (attention_event_id) DO NOTHING
	RETURNING id, organization_id, attention_event_id, decision, reason, policy_id,
			  confidence, uncertainty_notes, produced_by, input_refs, created_at`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a decision repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "decisions"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Insert(ctx context.Context, d Decision) (*Decision, bool, error) {
	if !d.Outcome.Valid() {
		return nil, false, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, d.Outcome)
	}
	if d.Reason == "" {
		return nil, false, fmt.Errorf("%w: reason required", ErrInvalidInput)
	}

	refs := d.InputRefs
	if refs == nil {
		refs = []events.InputRef{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return nil, false, fmt.Errorf("marshal input_refs: %w", err)
	}

	args := []any{
		d.OrganizationID,
		d.AttentionEventID,
		string(d.Outcome),
		d.Reason,
		nullUUID(d.PolicyID),
		d.Confidence,
		d.UncertaintyNotes,
		string(d.ProducedBy),
		refsJSON,
	}

	stored, inserted, err := repository.QueryOptional(ctx, r.db, insertQ, args, scanDecision)
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, false, fmt.Errorf("%w: unknown event or policy", ErrInvalidInput)
		}
		return nil, false, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if !inserted {
		existing, err := r.FindByEvent(ctx, d.AttentionEventID)
		if err != nil {
			return nil, false, fmt.Errorf("load existing decision: %w", err)
		}
		return existing, false, nil
	}

	return &stored, true, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Decision, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDecision)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) FindByEvent(ctx context.Context, eventID uuid.UUID) (*Decision, error) {
	q, args := query.NewBuilder(projection).BuildSingle("AttentionEventID", eventID)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDecision)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Decision], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Reason")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count decisions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDecision)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) ListDigestable(ctx context.Context, orgID uuid.UUID, start, end time.Time) ([]Decision, error) {
	return listDigestable(ctx, r.db, orgID, start, end)
}

func (r *repo) Tally(ctx context.Context, orgID uuid.UUID, start, end time.Time) (map[Outcome]int, error) {
	return tally(ctx, r.db, orgID, start, end)
}

func (r *repo) Snapshot(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*Window, error) {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	return repository.WithTx(ctx, r.db, opts, func(tx *sql.Tx) (*Window, error) {
		items, err := listDigestable(ctx, tx, orgID, start, end)
		if err != nil {
			return nil, err
		}
		counts, err := tally(ctx, tx, orgID, start, end)
		if err != nil {
			return nil, err
		}
		return &Window{Digestable: items, Tally: counts}, nil
	})
}

func listDigestable(ctx context.Context, q repository.Querier, orgID uuid.UUID, start, end time.Time) ([]Decision, error) {
	sqlText, args := query.
		NewBuilder(projection).
		WhereEquals("OrganizationID", orgID).
		WhereIn("Outcome", digestable).
		WhereWindow("CreatedAt", start.UTC(), end.UTC()).
		OrderByFields([]query.SortField{{Field: "CreatedAt"}, {Field: "ID"}}).
		Build()

	items, err := repository.QueryMany(ctx, q, sqlText, args, scanDecision)
	if err != nil {
		return nil, fmt.Errorf("list digestable decisions: %w", err)
	}
	return items, nil
}

func tally(ctx context.Context, q repository.Querier, orgID uuid.UUID, start, end time.Time) (map[Outcome]int, error) {
	const sqlText = `
		SELECT decision, COUNT(*)
		FROM attention_decisions
		WHERE organization_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY decision`

	type row struct {
		outcome Outcome
		count   int
	}

	rows, err := repository.QueryMany(ctx, q, sqlText, []any{orgID, start.UTC(), end.UTC()},
		func(s repository.Scanner) (row, error) {
			var rw row
			err := s.Scan(&rw.outcome, &rw.count)
			return rw, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("tally decisions: %w", err)
	}

	counts := make(map[Outcome]int, len(rows))
	for _, rw := range rows {
		counts[rw.outcome] = rw.count
	}
	return counts, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
