package policies

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

const returning = `
	RETURNING id, organization_id, name, description, policy_type, policy_config,
			  priority, is_enabled, created_at, updated_at`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a policy repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "policies"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Policy, error) {
	rule, err := cmd.Rule()
	if err != nil {
		return nil, err
	}
	config, err := EncodeRule(rule)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO attention_policies(
			organization_id, name, description, policy_type, policy_config, priority, is_enabled
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)` + returning

	args := []any{
		cmd.OrganizationID,
		cmd.Name,
		cmd.Description,
		string(rule.Type()),
		[]byte(config),
		cmd.Priority,
		cmd.enabled(),
	}

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPolicy)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("policy created",
		"id", p.ID,
		"organization_id", p.OrganizationID,
		"policy_type", p.Type(),
		"priority", p.Priority,
	)
	return &p, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Policy, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPolicy)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Policy], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count policies: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanPolicy)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Policy, error) {
	rule, err := cmd.Rule()
	if err != nil {
		return nil, err
	}
	config, err := EncodeRule(rule)
	if err != nil {
		return nil, err
	}

	q := `
		UPDATE attention_policies
		SET name = $1, description = $2, policy_type = $3, policy_config = $4,
			priority = $5, is_enabled = $6, updated_at = NOW()
		WHERE id = $7` + returning

	args := []any{
		cmd.Name,
		cmd.Description,
		string(rule.Type()),
		[]byte(config),
		cmd.Priority,
		cmd.IsEnabled,
		id,
	}

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPolicy)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("policy updated",
		"id", p.ID,
		"policy_type", p.Type(),
		"priority", p.Priority,
		"is_enabled", p.IsEnabled,
	)
	return &p, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM attention_policies WHERE id = $1", id)
	if repository.IsForeignKeyViolation(err) {
		return ErrInUse
	}
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("policy deleted", "id", id)
	return nil
}

func (r *repo) ListEnabled(ctx context.Context, orgID uuid.UUID) ([]Policy, error) {
	q, args := query.
		NewBuilder(projection).
		WhereEquals("OrganizationID", orgID).
		WhereEquals("IsEnabled", true).
		OrderByFields(evaluationOrder).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanPolicy)
	if err != nil {
		return nil, fmt.Errorf("list enabled policies: %w", err)
	}
	return items, nil
}

func (r *repo) Organizations(ctx context.Context) ([]uuid.UUID, error) {
	q := `
		SELECT DISTINCT organization_id
		FROM attention_policies
		WHERE is_enabled
		ORDER BY organization_id`

	ids, err := repository.QueryMany(ctx, r.db, q, nil, func(s repository.Scanner) (uuid.UUID, error) {
		var id uuid.UUID
		err := s.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("list policy organizations: %w", err)
	}
	return ids, nil
}
