package policies

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/query"
	"github.com/JaimeStill/vigil/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "attention_policies", "p").
	Project("id", "ID").
	Project("organization_id", "OrganizationID").
	Project("name", "Name").
	Project("description", "Description").
	Project("policy_type", "PolicyType").
	Project("policy_config", "PolicyConfig").
	Project("priority", "Priority").
	Project("is_enabled", "IsEnabled").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "Priority"}

// evaluationOrder is the deterministic order policies are applied in.
var evaluationOrder = []query.SortField{
	{Field: "Priority"},
	{Field: "CreatedAt"},
	{Field: "ID"},
}

// Filters narrows policy listings. Nil fields are ignored.
type Filters struct {
	OrganizationID *uuid.UUID
	PolicyType     *PolicyType
	IsEnabled      *bool
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("OrganizationID", f.OrganizationID).
		WhereEquals("PolicyType", f.PolicyType).
		WhereEquals("IsEnabled", f.IsEnabled)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("organization_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.OrganizationID = &id
		}
	}
	if v := values.Get("policy_type"); v != "" {
		pt := PolicyType(v)
		f.PolicyType = &pt
	}
	if v := values.Get("is_enabled"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.IsEnabled = &b
		}
	}

	return f
}

func scanPolicy(s repository.Scanner) (Policy, error) {
	var p Policy
	var policyType PolicyType
	var config []byte

	err := s.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Name,
		&p.Description,
		&policyType,
		&config,
		&p.Priority,
		&p.IsEnabled,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}

	rule, err := DecodeRule(policyType, config)
	if err != nil {
		return p, fmt.Errorf("policy %s: %w", p.ID, err)
	}
	p.Rule = rule

	return p, nil
}
