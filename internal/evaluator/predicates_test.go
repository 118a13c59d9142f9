package evaluator_test

import (
	"testing"
	"time"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/evaluator"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/internal/policies"
)

func TestInQuietHours(t *testing.T) {
	tests := []struct {
		name             string
		hour, start, end int
		want             bool
	}{
		{"wrap late evening", 23, 22, 8, true},
		{"wrap early morning", 2, 22, 8, true},
		{"wrap at start", 22, 22, 8, true},
		{"wrap at end is outside", 8, 22, 8, false},
		{"wrap midday", 12, 22, 8, false},
		{"plain inside", 3, 1, 5, true},
		{"plain end exclusive", 5, 1, 5, false},
		{"plain before", 0, 1, 5, false},
		{"empty window", 10, 10, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evaluator.InQuietHours(tt.hour, tt.start, tt.end); got != tt.want {
				t.Errorf("InQuietHours(%d, %d, %d) = %v, want %v", tt.hour, tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func eventWith(payload events.Payload) events.Event {
	return events.Event{EventType: events.AlertTriggered, SourceID: "a-1", PayloadSnapshot: payload}
}

func TestQuietHoursPredicate(t *testing.T) {
	rule := policies.QuietHours{StartHour: 22, EndHour: 8}
	night := time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)
	noon := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		severity string
		now      time.Time
		decisive bool
	}{
		{"info at night suppressed", "info", night, true},
		{"missing severity at night suppressed", "", night, true},
		{"critical at night passes", "critical", night, false},
		{"info at noon passes", "info", noon, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := events.Payload{}
			if tt.severity != "" {
				payload["severity"] = tt.severity
			}
			v := evaluator.QuietHours(rule, eventWith(payload), tt.now)
			if v.Decisive != tt.decisive {
				t.Fatalf("decisive: got %v, want %v", v.Decisive, tt.decisive)
			}
			if v.Decisive && v.Outcome != decisions.Suppress {
				t.Errorf("outcome: got %s, want suppress", v.Outcome)
			}
		})
	}
}

func TestQuietHoursUsesUTC(t *testing.T) {
	rule := policies.QuietHours{StartHour: 22, EndHour: 8}
	local := time.FixedZone("UTC+5", 5*3600)
	// 03:00 local is 22:00 UTC.
	now := time.Date(2026, 10, 15, 3, 0, 0, 0, local)

	if v := evaluator.QuietHours(rule, eventWith(events.Payload{}), now); !v.Decisive {
		t.Error("hour should be taken in UTC")
	}
}

func TestThresholdPredicate(t *testing.T) {
	info := events.SeverityInfo

	tests := []struct {
		name     string
		rule     policies.Threshold
		severity any
		decisive bool
	}{
		{"critical escalates", policies.Threshold{}, "critical", true},
		{"high escalates", policies.Threshold{}, "HIGH", true},
		{"info without minimum passes", policies.Threshold{}, "info", false},
		{"info equal to minimum escalates", policies.Threshold{MinSeverity: &info}, "info", true},
		{"unknown severity passes", policies.Threshold{MinSeverity: &info}, "debug", false},
		{"missing severity passes", policies.Threshold{MinSeverity: &info}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := events.Payload{}
			if tt.severity != nil {
				payload["severity"] = tt.severity
			}
			v := evaluator.Threshold(tt.rule, eventWith(payload))
			if v.Decisive != tt.decisive {
				t.Fatalf("decisive: got %v, want %v", v.Decisive, tt.decisive)
			}
			if v.Decisive && v.Outcome != decisions.Escalate {
				t.Errorf("outcome: got %s, want escalate", v.Outcome)
			}
		})
	}
}

func TestKeywordPredicate(t *testing.T) {
	rule := policies.KeywordEscalate{Keywords: []string{"", "Outage", "fraud", "AT&T", "<error>", "-> retry"}}

	tests := []struct {
		name     string
		payload  events.Payload
		decisive bool
	}{
		{"case-insensitive hit", events.Payload{"message": "Regional OUTAGE detected"}, true},
		{"nested value hit", events.Payload{"details": map[string]any{"tag": "possible fraud"}}, true},
		{"key names are searched", events.Payload{"fraud_score": 0.1}, true},
		{"ampersand keyword", events.Payload{"message": "carrier AT&T degraded"}, true},
		{"angle bracket keyword", events.Payload{"log": "saw <ERROR> twice"}, true},
		{"arrow keyword", events.Payload{"hint": "5xx -> retry"}, true},
		{"no hit", events.Payload{"message": "all good"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := evaluator.KeywordEscalate(rule, eventWith(tt.payload)); v.Decisive != tt.decisive {
				t.Errorf("decisive: got %v, want %v (reason %q)", v.Decisive, tt.decisive, v.Reason)
			}
		})
	}
}

func TestKeywordBlankKeywordsNeverMatch(t *testing.T) {
	rule := policies.KeywordEscalate{Keywords: []string{"", "  "}}
	if v := evaluator.KeywordEscalate(rule, eventWith(events.Payload{"message": "anything"})); v.Decisive {
		t.Error("blank keywords must not match every payload")
	}
}
