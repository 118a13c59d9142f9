package policies

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/vigil/internal/events"
)

// PolicyType selects the predicate a policy applies.
type PolicyType string

const (
	TypeQuietHours        PolicyType = "quiet_hours"
	TypeThreshold         PolicyType = "threshold"
	TypeRecurringSuppress PolicyType = "recurring_suppress"
	TypeKeywordEscalate   PolicyType = "keyword_escalate"
	TypeCustom            PolicyType = "custom"
)

// Rule is the typed configuration of a policy. The set of implementations
// is closed; each PolicyType has exactly one.
type Rule interface {
	Type() PolicyType
	Validate() error
	sealed()
}

// QuietHours suppresses non-critical events while the current UTC hour is
// inside [StartHour, EndHour). The window wraps midnight when StartHour > EndHour.
type QuietHours struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Threshold escalates high and critical events, and events whose severity
// equals MinSeverity when set.
type Threshold struct {
	MinSeverity *events.Severity `json:"min_severity,omitempty"`
}

// RecurringSuppress suppresses an event once Count events with the same type
// and source have been seen within the trailing WindowHours.
type RecurringSuppress struct {
	Count       int `json:"count"`
	WindowHours int `json:"window_hours"`
}

// KeywordEscalate escalates when any keyword appears in the serialized payload.
type KeywordEscalate struct {
	Keywords []string `json:"keywords"`
}

// Custom is a reserved extension point. It never decides.
type Custom struct {
	Params map[string]any
}

func (QuietHours) Type() PolicyType        { return TypeQuietHours }
func (Threshold) Type() PolicyType         { return TypeThreshold }
func (RecurringSuppress) Type() PolicyType { return TypeRecurringSuppress }
func (KeywordEscalate) Type() PolicyType   { return TypeKeywordEscalate }
func (Custom) Type() PolicyType            { return TypeCustom }

func (QuietHours) sealed()        {}
func (Threshold) sealed()         {}
func (RecurringSuppress) sealed() {}
func (KeywordEscalate) sealed()   {}
func (Custom) sealed()            {}

func (r QuietHours) Validate() error {
	if !validHour(r.StartHour) || !validHour(r.EndHour) {
		return fmt.Errorf("%w: quiet_hours hours must be within 0-23", ErrInvalidConfig)
	}
	return nil
}

func (r Threshold) Validate() error {
	if r.MinSeverity != nil && !r.MinSeverity.Valid() {
		return fmt.Errorf("%w: threshold min_severity %q is not a severity", ErrInvalidConfig, *r.MinSeverity)
	}
	return nil
}

func (r RecurringSuppress) Validate() error {
	if r.Count < 1 {
		return fmt.Errorf("%w: recurring_suppress count must be at least 1", ErrInvalidConfig)
	}
	if r.WindowHours < 1 {
		return fmt.Errorf("%w: recurring_suppress window_hours must be at least 1", ErrInvalidConfig)
	}
	return nil
}

func (r KeywordEscalate) Validate() error {
	for _, k := range r.Keywords {
		if strings.TrimSpace(k) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: keyword_escalate requires at least one keyword", ErrInvalidConfig)
}

func (Custom) Validate() error { return nil }

func (r Custom) MarshalJSON() ([]byte, error) {
	if r.Params == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Params)
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}

// DecodeRule parses raw policy_config into the Rule variant for t and validates it.
func DecodeRule(t PolicyType, raw json.RawMessage) (Rule, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	var (
		rule Rule
		err  error
	)

	switch t {
	case TypeQuietHours:
		rule, err = decodeQuietHours(raw)
	case TypeThreshold:
		rule, err = decodeThreshold(raw)
	case TypeRecurringSuppress:
		rule, err = decodeRecurring(raw)
	case TypeKeywordEscalate:
		rule, err = decodeKeywords(raw)
	case TypeCustom:
		var params map[string]any
		if err = json.Unmarshal(raw, &params); err == nil {
			rule = Custom{Params: params}
		}
	default:
		return nil, fmt.Errorf("%w: unknown policy_type %q", ErrInvalidConfig, t)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, t, err)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// EncodeRule serializes a rule back to its policy_config form.
func EncodeRule(r Rule) (json.RawMessage, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %s config: %w", r.Type(), err)
	}
	return data, nil
}

func decodeQuietHours(raw []byte) (Rule, error) {
	var aux struct {
		StartHour *int `json:"start_hour"`
		EndHour   *int `json:"end_hour"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, err
	}
	if aux.StartHour == nil || aux.EndHour == nil {
		return nil, fmt.Errorf("start_hour and end_hour required")
	}
	return QuietHours{StartHour: *aux.StartHour, EndHour: *aux.EndHour}, nil
}

func decodeThreshold(raw []byte) (Rule, error) {
	var aux struct {
		MinSeverity *string `json:"min_severity"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, err
	}

	var r Threshold
	if aux.MinSeverity != nil && *aux.MinSeverity != "" {
		s := events.Severity(strings.ToLower(*aux.MinSeverity))
		r.MinSeverity = &s
	}
	return r, nil
}

func decodeRecurring(raw []byte) (Rule, error) {
	var aux struct {
		Count       *int `json:"count"`
		WindowHours *int `json:"window_hours"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, err
	}
	if aux.Count == nil || aux.WindowHours == nil {
		return nil, fmt.Errorf("count and window_hours required")
	}
	return RecurringSuppress{Count: *aux.Count, WindowHours: *aux.WindowHours}, nil
}

func decodeKeywords(raw []byte) (Rule, error) {
	var r KeywordEscalate
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return r, nil
}
