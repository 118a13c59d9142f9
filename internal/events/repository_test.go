package events_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/pkg/pagination"
)

var eventColumns = []string{
	"id", "organization_id", "event_type", "source_table", "source_id",
	"occurred_at", "payload_snapshot", "input_refs", "created_at",
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSystem(t *testing.T) (events.System, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := pagination.Config{DefaultPageSize: 25, MaxPageSize: 200}
	return events.New(db, discard(), cfg), mock
}

func TestCreate(t *testing.T) {
	sys, mock := newSystem(t)
	in := validInput()
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO attention_events").
		WithArgs(in.OrganizationID, "webhook_failed", "webhook_deliveries", "wh-1",
			in.OccurredAt, sqlmock.AnyArg(), []byte("[]")).
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow(
			id.String(), in.OrganizationID.String(), "webhook_failed", "webhook_deliveries", "wh-1",
			in.OccurredAt, []byte(`{"severity":"high"}`), []byte(`[]`), now,
		))

	e, err := sys.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if e.ID != id {
		t.Errorf("id: got %s, want %s", e.ID, id)
	}
	if e.PayloadSnapshot.Severity() != events.SeverityHigh {
		t.Errorf("payload: got %v", e.PayloadSnapshot)
	}
	if e.InputRefs == nil {
		t.Error("input refs should be an empty slice, not nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	sys, mock := newSystem(t)
	in := validInput()
	in.SourceID = ""

	_, err := sys.Create(context.Background(), in)
	if !errors.Is(err, events.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no SQL expected for invalid input: %v", err)
	}
}

func TestFindNotFound(t *testing.T) {
	sys, mock := newSystem(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM public.attention_events e WHERE e.id = \\$1").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := sys.Find(context.Background(), id)
	if !errors.Is(err, events.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestCountRecent(t *testing.T) {
	sys, mock := newSystem(t)
	org := uuid.New()
	since := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM public.attention_events e WHERE e.organization_id = \$1 AND e.source_id = \$2 AND e.event_type = \$3 AND e.created_at >= \$4`).
		WithArgs(org, "wh-1", "webhook_failed", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := sys.CountRecent(context.Background(), org, "wh-1", events.WebhookFailed, since)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 4 {
		t.Errorf("count: got %d, want 4", n)
	}
}

func TestCountRecentError(t *testing.T) {
	sys, mock := newSystem(t)

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection reset"))

	if _, err := sys.CountRecent(context.Background(), uuid.New(), "x", events.SystemError, time.Now()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOrganizations(t *testing.T) {
	sys, mock := newSystem(t)
	a, b := uuid.New(), uuid.New()
	since := time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT DISTINCT organization_id").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow(a.String()).AddRow(b.String()))

	ids, err := sys.Organizations(context.Background(), since)
	if err != nil {
		t.Fatalf("organizations failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != a || ids[1] != b {
		t.Errorf("organizations: got %v", ids)
	}
}

func TestListScopedByOrganization(t *testing.T) {
	sys, mock := newSystem(t)
	org := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM public.attention_events e WHERE e.organization_id = \$1`).
		WithArgs(org).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY e.created_at DESC LIMIT 25 OFFSET 0`).
		WithArgs(org).
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow(
			uuid.NewString(), org.String(), "call_completed", "calls", "c-1",
			time.Now(), []byte(`{}`), []byte(`[{"table":"calls","id":"c-1"}]`), time.Now(),
		))

	result, err := sys.List(context.Background(), pagination.PageRequest{}, events.Filters{OrganizationID: &org})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Total != 1 || len(result.Data) != 1 {
		t.Fatalf("result: got %+v", result)
	}
	if refs := result.Data[0].InputRefs; len(refs) != 1 || refs[0].Table != "calls" {
		t.Errorf("input refs: got %v", refs)
	}
}
