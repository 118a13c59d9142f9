package evaluator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/internal/policies"
)

// Verdict is the result of applying one policy. A non-decisive verdict
// passes evaluation on to the next policy.
type Verdict struct {
	Decisive bool
	Outcome  decisions.Outcome
	Reason   string
}

var pass = Verdict{}

func decide(outcome decisions.Outcome, reason string) Verdict {
	return Verdict{Decisive: true, Outcome: outcome, Reason: reason}
}

// InQuietHours reports whether hour falls within [start, end). A window with
// start after end wraps midnight; start equal to end is empty.
func InQuietHours(hour, start, end int) bool {
	switch {
	case start < end:
		return hour >= start && hour < end
	case start > end:
		return hour >= start || hour < end
	default:
		return false
	}
}

// QuietHours suppresses events inside the window. Critical events pass
// through so a later policy can escalate them.
func QuietHours(r policies.QuietHours, e events.Event, now time.Time) Verdict {
	if !InQuietHours(now.UTC().Hour(), r.StartHour, r.EndHour) {
		return pass
	}
	if e.PayloadSnapshot.Severity() == events.SeverityCritical {
		return pass
	}
	return decide(decisions.Suppress, fmt.Sprintf(
		"Quiet hours %02d:00-%02d:00 UTC; non-critical event suppressed",
		r.StartHour, r.EndHour,
	))
}

// Threshold escalates high and critical events, and any event whose
// severity equals the configured minimum.
func Threshold(r policies.Threshold, e events.Event) Verdict {
	sev := e.PayloadSnapshot.Severity()

	switch {
	case sev == events.SeverityCritical || sev == events.SeverityHigh:
		return decide(decisions.Escalate, fmt.Sprintf("Severity %s meets escalation threshold", sev))
	case r.MinSeverity != nil && sev != "" && *r.MinSeverity == sev:
		return decide(decisions.Escalate, fmt.Sprintf("Severity %s matches configured min_severity", sev))
	default:
		return pass
	}
}

// KeywordEscalate escalates when any non-empty keyword occurs in the
// serialized payload, ignoring case.
func KeywordEscalate(r policies.KeywordEscalate, e events.Event) Verdict {
	text := strings.ToLower(e.PayloadSnapshot.Text())

	for _, k := range r.Keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(k)) {
			return decide(decisions.Escalate, fmt.Sprintf("Keyword %q matched in payload", k))
		}
	}
	return pass
}

// RecurringSuppress suppresses an event when at least Count events with the
// same tenant, type, and source were ingested within the trailing window.
// The count includes the event under evaluation.
func RecurringSuppress(
	ctx context.Context,
	history HistoryCounter,
	r policies.RecurringSuppress,
	e events.Event,
	now time.Time,
) (Verdict, error) {
	since := now.Add(-time.Duration(r.WindowHours) * time.Hour)

	n, err := history.CountRecent(ctx, e.OrganizationID, e.SourceID, e.EventType, since)
	if err != nil {
		return pass, fmt.Errorf("count recent events: %w", err)
	}

	if n < r.Count {
		return pass, nil
	}
	return decide(decisions.Suppress, fmt.Sprintf(
		"Recurring noise: %d occurrences of %s from %s within %dh (threshold %d)",
		n, e.EventType, e.SourceID, r.WindowHours, r.Count,
	)), nil
}
