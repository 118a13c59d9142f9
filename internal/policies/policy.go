// Package policies stores the tenant-authored rules the evaluator applies.
// Policies are administered over HTTP and read-only to the engine.
package policies

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Policy is a tenant-configured rule. Lower Priority evaluates first.
type Policy struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Rule           Rule      `json:"-"`
	Priority       int       `json:"priority"`
	IsEnabled      bool      `json:"is_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Type returns the policy type of the attached rule.
func (p Policy) Type() PolicyType {
	if p.Rule == nil {
		return ""
	}
	return p.Rule.Type()
}

// MarshalJSON flattens the rule into policy_type and policy_config fields.
func (p Policy) MarshalJSON() ([]byte, error) {
	type plain Policy

	config := json.RawMessage("{}")
	if p.Rule != nil {
		raw, err := EncodeRule(p.Rule)
		if err != nil {
			return nil, err
		}
		config = raw
	}

	return json.Marshal(struct {
		plain
		PolicyType   PolicyType      `json:"policy_type"`
		PolicyConfig json.RawMessage `json:"policy_config"`
	}{plain(p), p.Type(), config})
}

// CreateCommand carries the fields for a new policy. IsEnabled defaults to true.
type CreateCommand struct {
	OrganizationID uuid.UUID       `json:"organization_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	PolicyType     PolicyType      `json:"policy_type"`
	PolicyConfig   json.RawMessage `json:"policy_config"`
	Priority       int             `json:"priority"`
	IsEnabled      *bool           `json:"is_enabled,omitempty"`
}

// Rule validates the command and decodes its configuration.
func (c CreateCommand) Rule() (Rule, error) {
	if c.OrganizationID == uuid.Nil {
		return nil, fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	return DecodeRule(c.PolicyType, c.PolicyConfig)
}

func (c CreateCommand) enabled() bool {
	return c.IsEnabled == nil || *c.IsEnabled
}

// UpdateCommand replaces the mutable fields of a policy. The tenant is fixed at creation.
type UpdateCommand struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	PolicyType   PolicyType      `json:"policy_type"`
	PolicyConfig json.RawMessage `json:"policy_config"`
	Priority     int             `json:"priority"`
	IsEnabled    bool            `json:"is_enabled"`
}

// Rule validates the command and decodes its configuration.
func (c UpdateCommand) Rule() (Rule, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	return DecodeRule(c.PolicyType, c.PolicyConfig)
}
