package events_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/pkg/pagination"
	"github.com/JaimeStill/vigil/pkg/routes"
)

type fakeSystem struct {
	events.System
	stored      map[uuid.UUID]events.Event
	lastFilters events.Filters
}

func (f *fakeSystem) Find(_ context.Context, id uuid.UUID) (*events.Event, error) {
	e, ok := f.stored[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	return &e, nil
}

func (f *fakeSystem) List(_ context.Context, page pagination.PageRequest, filters events.Filters) (*pagination.PageResult[events.Event], error) {
	f.lastFilters = filters
	var items []events.Event
	for _, e := range f.stored {
		items = append(items, e)
	}
	result := pagination.NewPageResult(items, len(items), page.Page, page.PageSize)
	return &result, nil
}

func newMux(sys events.System) *http.ServeMux {
	h := events.NewHandler(sys, discard(), pagination.Config{DefaultPageSize: 25, MaxPageSize: 200})
	mux := http.NewServeMux()
	routes.Register(mux, h.Routes())
	return mux
}

func TestHandlerFind(t *testing.T) {
	id := uuid.New()
	sys := &fakeSystem{stored: map[uuid.UUID]events.Event{
		id: {ID: id, EventType: events.AlertTriggered, CreatedAt: time.Now()},
	}}
	mux := newMux(sys)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/events/" + id.String(), http.StatusOK},
		{"missing", "/events/" + uuid.NewString(), http.StatusNotFound},
		{"malformed id", "/events/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandlerListFilters(t *testing.T) {
	org := uuid.New()
	sys := &fakeSystem{stored: map[uuid.UUID]events.Event{}}
	mux := newMux(sys)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/events?organization_id="+org.String()+"&event_type=system_error&since=2026-10-14T00:00:00Z", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	f := sys.lastFilters
	if f.OrganizationID == nil || *f.OrganizationID != org {
		t.Errorf("organization filter: got %v", f.OrganizationID)
	}
	if f.EventType == nil || *f.EventType != events.SystemError {
		t.Errorf("event type filter: got %v", f.EventType)
	}
	if f.Since == nil || f.Since.Hour() != 0 {
		t.Errorf("since filter: got %v", f.Since)
	}

	var body pagination.PageResult[events.Event]
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data == nil {
		t.Error("data should be an empty array")
	}
}
