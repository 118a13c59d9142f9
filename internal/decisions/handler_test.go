package decisions_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/pkg/pagination"
	"github.com/JaimeStill/vigil/pkg/routes"
)

type fakeSystem struct {
	decisions.System
	byEvent map[uuid.UUID]decisions.Decision
}

func (f *fakeSystem) FindByEvent(_ context.Context, eventID uuid.UUID) (*decisions.Decision, error) {
	d, ok := f.byEvent[eventID]
	if !ok {
		return nil, decisions.ErrNotFound
	}
	return &d, nil
}

func TestHandlerFindByEvent(t *testing.T) {
	event := uuid.New()
	sys := &fakeSystem{byEvent: map[uuid.UUID]decisions.Decision{
		event: {ID: uuid.New(), AttentionEventID: event, Outcome: decisions.Suppress, Reason: "quiet"},
	}}

	h := decisions.NewHandler(sys, discard(), pagination.Config{DefaultPageSize: 25, MaxPageSize: 200})
	mux := http.NewServeMux()
	routes.Register(mux, h.Routes())

	tests := []struct {
		name string
		path string
		want int
	}{
		{"recorded", "/decisions/event/" + event.String(), http.StatusOK},
		{"missing", "/decisions/event/" + uuid.NewString(), http.StatusNotFound},
		{"bad id", "/decisions/event/xyz", http.StatusBadRequest},
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
