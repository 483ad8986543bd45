package engine

import (
	"testing"
	"time"

	"github.com/trailhead-app/trailhead/internal/domain"
	"github.com/trailhead-app/trailhead/internal/infra/memstore"
	"github.com/trailhead-app/trailhead/internal/infra/schedule"
)

type totalRecorder struct {
	totals      []int64
	speculative []bool
}

func (r *totalRecorder) listen(total int64, speculative bool) {
	r.totals = append(r.totals, total)
	r.speculative = append(r.speculative, speculative)
}

func optimisticConfig() Config {
	cfg := testConfig()
	cfg.OptimisticEnabled = true
	return cfg
}

func TestOptimistic_SpeculateThenConfirm(t *testing.T) {
	rec := &totalRecorder{}
	store := memstore.New()
	clock := schedule.NewFakeClock(testStart())
	e := New(store, clock, optimisticConfig(), rec.listen)

	res := e.GrantXP(GrantRequest{Amount: 30, Source: domain.SourceHabit})
	if !res.Success {
		t.Fatalf("grant failed: %s", res.Reason)
	}

	if len(rec.totals) == 0 {
		t.Fatal("no speculative total published")
	}
	if rec.totals[0] != 30 || !rec.speculative[0] {
		t.Errorf("first publication = (%d, spec=%v), want (30, true)", rec.totals[0], rec.speculative[0])
	}
	// Speculation matched the committed result: no correction follows.
	if len(rec.totals) != 1 {
		t.Errorf("publications = %v, want exactly one", rec.totals)
	}
}

func TestOptimistic_CorrectionOnClamp(t *testing.T) {
	rec := &totalRecorder{}
	store := memstore.New()
	clock := schedule.NewFakeClock(testStart())
	cfg := optimisticConfig()
	cfg.SourceCaps = map[string]int64{"habit": 20}
	e := New(store, clock, cfg, rec.listen)

	// Requested 50 but the guard clamps to 20: the speculative 50 must be
	// corrected down.
	res := e.GrantXP(GrantRequest{Amount: 50, Source: domain.SourceHabit})
	if res.AmountGranted != 20 {
		t.Fatalf("AmountGranted = %d, want 20", res.AmountGranted)
	}

	last := rec.totals[len(rec.totals)-1]
	if last != 20 || rec.speculative[len(rec.speculative)-1] {
		t.Errorf("last publication = (%d, spec=%v), want authoritative 20", last, rec.speculative[len(rec.speculative)-1])
	}
	if e.Coordinator().Corrections() != 1 {
		t.Errorf("Corrections = %d, want 1", e.Coordinator().Corrections())
	}
}

func TestOptimistic_RevertOnFailure(t *testing.T) {
	rec := &totalRecorder{}
	store := memstore.New()
	clock := schedule.NewFakeClock(testStart())
	e := New(store, clock, optimisticConfig(), rec.listen)

	e.GrantXP(GrantRequest{Amount: 10, Source: domain.SourceHabit})

	store.FailAppends = 1
	clock.Advance(time.Second) // expire the cache TTL
	e.GrantXP(GrantRequest{Amount: 40, Source: domain.SourceHabit})

	// The last publication must be the authoritative pre-failure total.
	last := rec.totals[len(rec.totals)-1]
	if last != 10 {
		t.Errorf("last published total = %d, want reverted 10", last)
	}
	if rec.speculative[len(rec.speculative)-1] {
		t.Error("revert publication should be authoritative")
	}
}

func TestCoordinator_CachedTotalTTL(t *testing.T) {
	store := memstore.New()
	clock := schedule.NewFakeClock(testStart())
	e := New(store, clock, optimisticConfig(), nil)

	e.GrantXP(GrantRequest{Amount: 30, Source: domain.SourceHabit})
	if got := e.Coordinator().CachedTotal(); got != 30 {
		t.Fatalf("CachedTotal = %d, want 30", got)
	}

	// Mutate the store behind the cache; within the TTL the stale value is
	// served, after it the fresh one.
	store.Append(domain.XPTransaction{ID: "x", Amount: 70, Source: domain.SourceHabit,
		Date: clock.Now().Format(domain.DateLayout), CreatedAt: clock.Now()},
		domain.XPState{TotalXP: 100, CurrentLevel: 2, LastActivity: clock.Now()}, nil)

	if got := e.Coordinator().CachedTotal(); got != 30 {
		t.Errorf("CachedTotal inside TTL = %d, want stale 30", got)
	}

	clock.Advance(101 * time.Millisecond)
	if got := e.Coordinator().CachedTotal(); got != 100 {
		t.Errorf("CachedTotal after TTL = %d, want fresh 100", got)
	}
}

func TestCoordinator_DebouncedReconcile(t *testing.T) {
	rec := &totalRecorder{}
	store := memstore.New()
	clock := schedule.NewFakeClock(testStart())
	cfg := optimisticConfig()
	e := New(store, clock, cfg, rec.listen)
	coord := e.Coordinator()

	coord.Confirm(50) // seed the cache with a wrong value
	store.Append(domain.XPTransaction{ID: "x", Amount: 80, Source: domain.SourceHabit,
		Date: clock.Now().Format(domain.DateLayout), CreatedAt: clock.Now()},
		domain.XPState{TotalXP: 80, CurrentLevel: 2, LastActivity: clock.Now()}, nil)

	// A burst of schedules collapses into one reconcile run.
	coord.ScheduleReconcile()
	clock.Advance(20 * time.Millisecond)
	coord.ScheduleReconcile()
	clock.Advance(50 * time.Millisecond)

	if got := coord.CachedTotal(); got != 80 {
		t.Errorf("CachedTotal after reconcile = %d, want 80", got)
	}

	corrections := coord.Corrections()
	if corrections != 1 {
		t.Errorf("Corrections = %d, want 1", corrections)
	}

	// Idempotent: reconciling again with no writes changes nothing.
	coord.Reconcile()
	if coord.Corrections() != corrections {
		t.Error("reconcile with no drift published a correction")
	}
}
