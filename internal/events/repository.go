package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/pagination"
	"github.com/JaimeStill/vigil/pkg/query"
	"github.com/JaimeStill/vigil/pkg/repository"
)

const insertQ = `
	INSERT INTO attention_events(
		organization_id, event_type, source_table, source_id,
		occurred_at, payload_snapshot, input_refs
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, organization_id, event_type, source_table, source_id,
			  occurred_at, payload_snapshot, input_refs, created_at`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an event repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "events"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Create(ctx context.Context, in Input) (*Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(in.PayloadSnapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: payload_snapshot: %v", ErrInvalidInput, err)
	}

	refs := in.InputRefs
	if refs == nil {
		refs = []InputRef{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("marshal input_refs: %w", err)
	}

	args := []any{
		in.OrganizationID,
		string(in.EventType),
		in.SourceTable,
		in.SourceID,
		in.OccurredAt.UTC(),
		payload,
		refsJSON,
	}

	e, err := repository.QueryOne(ctx, r.db, insertQ, args, scanEvent)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("event recorded",
		"id", e.ID,
		"organization_id", e.OrganizationID,
		"event_type", e.EventType,
		"source_id", e.SourceID,
	)
	return &e, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Event, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, r.db, q, args, scanEvent)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Event], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "SourceTable", "SourceID")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) CountRecent(
	ctx context.Context,
	orgID uuid.UUID,
	sourceID string,
	eventType EventType,
	since time.Time,
) (int, error) {
	q, args := query.
		NewBuilder(projection).
		WhereEquals("OrganizationID", orgID).
		WhereEquals("SourceID", sourceID).
		WhereEquals("EventType", string(eventType)).
		WhereSince("CreatedAt", since.UTC()).
		BuildCount()

	n, err := repository.Count(ctx, r.db, q, args)
	if err != nil {
		return 0, fmt.Errorf("count recent events: %w", err)
	}
	return n, nil
}

func (r *repo) Organizations(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	q := `
		SELECT DISTINCT organization_id
		FROM attention_events
		WHERE created_at >= $1
		ORDER BY organization_id`

	ids, err := repository.QueryMany(ctx, r.db, q, []any{since.UTC()}, scanUUID)
	if err != nil {
		return nil, fmt.Errorf("list event organizations: %w", err)
	}
	return ids, nil
}

func scanUUID(s repository.Scanner) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.Scan(&id)
	return id, err
}
