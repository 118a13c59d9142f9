package decisions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/pkg/pagination"
)

var decisionColumns = []string{
	"id", "organization_id", "attention_event_id", "decision", "reason", "policy_id",
	"confidence", "uncertainty_notes", "produced_by", "input_refs", "created_at",
}

func newSystem(t *testing.T) (decisions.System, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return decisions.New(db, discard(), pagination.Config{DefaultPageSize: 25, MaxPageSize: 200}), mock
}

func decisionRow(rows *sqlmock.Rows, id, org, event uuid.UUID, outcome, reason string, policy any) *sqlmock.Rows {
	return rows.AddRow(id.String(), org.String(), event.String(), outcome, reason, policy,
		nil, nil, "system", []byte(`[]`), time.Now())
}

func TestInsertNew(t *testing.T) {
	sys, mock := newSystem(t)
	org, event, policy := uuid.New(), uuid.New(), uuid.New()
	id := uuid.New()

	mock.ExpectQuery(`INSERT INTO attention_decisions .+ ON CONFLICT \(attention_event_id\) DO NOTHING`).
		WithArgs(org, event, "escalate", "Severity high", sqlmock.AnyArg(), nil, nil, "system", []byte("[]")).
		WillReturnRows(decisionRow(sqlmock.NewRows(decisionColumns), id, org, event, "escalate", "Severity high", policy.String()))

	d, inserted, err := sys.Insert(context.Background(), decisions.Decision{
		OrganizationID:   org,
		AttentionEventID: event,
		Outcome:          decisions.Escalate,
		Reason:           "Severity high",
		PolicyID:         &policy,
		ProducedBy:       decisions.BySystem,
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !inserted {
		t.Error("inserted should be true")
	}
	if d.PolicyID == nil || *d.PolicyID != policy {
		t.Errorf("policy id: got %v, want %s", d.PolicyID, policy)
	}
}

func TestInsertConflictReturnsExisting(t *testing.T) {
	sys, mock := newSystem(t)
	org, event, existing := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("INSERT INTO attention_decisions").
		WillReturnRows(sqlmock.NewRows(decisionColumns))
	mock.ExpectQuery(`FROM public.attention_decisions d WHERE d.attention_event_id = \$1`).
		WithArgs(event).
		WillReturnRows(decisionRow(sqlmock.NewRows(decisionColumns), existing, org, event, "suppress", "Quiet hours", nil))

	d, inserted, err := sys.Insert(context.Background(), decisions.Decision{
		OrganizationID:   org,
		AttentionEventID: event,
		Outcome:          decisions.NeedsReview,
		Reason:           "retry",
		ProducedBy:       decisions.BySystem,
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if inserted {
		t.Error("inserted should be false on conflict")
	}
	if d.ID != existing || d.Outcome != decisions.Suppress || d.PolicyID != nil {
		t.Errorf("existing decision: got %+v", d)
	}
}

func TestInsertValidation(t *testing.T) {
	tests := []struct {
		name string
		d    decisions.Decision
	}{
		{"unknown outcome", decisions.Decision{Outcome: "ignore", Reason: "r"}},
		{"empty reason", decisions.Decision{Outcome: decisions.Suppress}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys, _ := newSystem(t)
			if _, _, err := sys.Insert(context.Background(), tt.d); !errors.Is(err, decisions.ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestListDigestable(t *testing.T) {
	sys, mock := newSystem(t)
	org := uuid.New()
	start := time.Date(2026, 10, 13, 22, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Hour)

	mock.ExpectQuery(`WHERE d.organization_id = \$1 AND d.decision IN \(\$2, \$3\) AND d.created_at >= \$4 AND d.created_at < \$5 ORDER BY d.created_at ASC, d.id ASC`).
		WithArgs(org, "suppress", "include_in_digest", start, end).
		WillReturnRows(decisionRow(sqlmock.NewRows(decisionColumns), uuid.New(), org, uuid.New(), "suppress", "Rate limit", nil))

	items, err := sys.ListDigestable(context.Background(), org, start, end)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 || items[0].Reason != "Rate limit" {
		t.Errorf("items: got %+v", items)
	}
}

func TestTally(t *testing.T) {
	sys, mock := newSystem(t)
	org := uuid.New()
	start := time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT decision, COUNT").
		WithArgs(org, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"decision", "count"}).
			AddRow("escalate", 2).
			AddRow("needs_review", 5))

	tally, err := sys.Tally(context.Background(), org, start, end)
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if tally[decisions.Escalate] != 2 || tally[decisions.NeedsReview] != 5 || tally[decisions.Suppress] != 0 {
		t.Errorf("tally: got %v", tally)
	}
}

func TestSnapshot(t *testing.T) {
	sys, mock := newSystem(t)
	org := uuid.New()
	start := time.Date(2026, 10, 13, 22, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`d.decision IN \(\$2, \$3\)`).
		WithArgs(org, "suppress", "include_in_digest", start, end).
		WillReturnRows(decisionRow(sqlmock.NewRows(decisionColumns), uuid.New(), org, uuid.New(), "suppress", "Timeout", nil))
	mock.ExpectQuery("SELECT decision, COUNT").
		WithArgs(org, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"decision", "count"}).AddRow("suppress", 1).AddRow("escalate", 3))
	mock.ExpectCommit()

	w, err := sys.Snapshot(context.Background(), org, start, end)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(w.Digestable) != 1 || w.Tally[decisions.Escalate] != 3 {
		t.Errorf("window: got %+v", w)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSnapshotRollsBackOnFailure(t *testing.T) {
	sys, mock := newSystem(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM public.attention_decisions").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := sys.Snapshot(context.Background(), uuid.New(), time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
