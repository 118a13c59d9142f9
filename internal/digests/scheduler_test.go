package digests_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/digests"
)

// emptySource is safe for the scheduler's concurrent compiles.
type emptySource struct{}

func (emptySource) Snapshot(context.Context, uuid.UUID, time.Time, time.Time) (*decisions.Window, error) {
	return &decisions.Window{}, nil
}

type syncDigests struct {
	mu sync.Mutex
	memoryDigests
	failFor uuid.UUID
}

func (s *syncDigests) Insert(ctx context.Context, d digests.Digest) (*digests.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.OrganizationID == s.failFor {
		return nil, errors.New("insert failed")
	}
	return s.memoryDigests.Insert(ctx, d)
}

func staticTenants(ids ...uuid.UUID) digests.TenantSource {
	return digests.TenantFunc(func(context.Context, time.Time) ([]uuid.UUID, error) {
		return ids, nil
	})
}

func newScheduler(store digests.Store, tenants digests.TenantSource) *digests.Scheduler {
	c := digests.NewCompiler(emptySource{}, store, nil, discard())
	return digests.NewScheduler(c, tenants, digests.SchedulerConfig{
		DigestType:  "overnight",
		Interval:    12 * time.Hour,
		Window:      10 * time.Hour,
		Concurrency: 2,
	}, discard())
}

func TestSchedulerPeriod(t *testing.T) {
	s := newScheduler(&syncDigests{}, staticTenants())

	start, end := s.Period(time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC))

	if want := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end: got %v, want %v", end, want)
	}
	if want := time.Date(2026, 10, 13, 14, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start: got %v, want %v", start, want)
	}
}

func TestSchedulerRunOnce(t *testing.T) {
	orgs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	store := &syncDigests{}
	s := newScheduler(store, staticTenants(orgs...))
	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

	if err := s.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(store.stored) != 3 {
		t.Fatalf("stored: got %d, want 3", len(store.stored))
	}

	if err := s.RunOnce(context.Background(), now.Add(time.Minute)); err != nil {
		t.Fatalf("rerun should skip duplicates: %v", err)
	}
	if len(store.stored) != 3 {
		t.Errorf("rerun stored duplicates: got %d", len(store.stored))
	}
}

func TestSchedulerRunOnceCollectsFailures(t *testing.T) {
	bad := uuid.New()
	store := &syncDigests{failFor: bad}
	s := newScheduler(store, staticTenants(uuid.New(), bad, uuid.New()))

	err := s.RunOnce(context.Background(), time.Now())
	if err == nil || !strings.Contains(err.Error(), bad.String()) {
		t.Fatalf("expected failure naming %s, got %v", bad, err)
	}
	if len(store.stored) != 2 {
		t.Errorf("other tenants should still compile: got %d", len(store.stored))
	}
}

func TestUnionTenants(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	got, err := digests.UnionTenants(staticTenants(a, b), staticTenants(b, c)).Tenants(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("tenants failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("union: got %v", got)
	}

	boom := errors.New("db down")
	failing := digests.TenantFunc(func(context.Context, time.Time) ([]uuid.UUID, error) { return nil, boom })
	if _, err := digests.UnionTenants(staticTenants(a), failing).Tenants(context.Background(), time.Now()); !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
}
