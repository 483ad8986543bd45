package engine

import (
	"testing"
	"time"

	"github.com/trailhead-app/trailhead/internal/domain"
	"github.com/trailhead-app/trailhead/internal/infra/memstore"
	"github.com/trailhead-app/trailhead/internal/infra/schedule"
)

func batchConfig() Config {
	cfg := testConfig()
	cfg.BatchingEnabled = true
	return cfg
}

func TestBatch_FlushOnWindowExpiry(t *testing.T) {
	e, store, clock := newTestEngine(t, batchConfig())

	res := e.GrantXP(GrantRequest{Amount: 10, Source: domain.SourceHabit})
	if !res.Success || !res.Batched {
		t.Fatalf("grant = %+v, want batched success", res)
	}
	if res.TotalXP != 10 {
		t.Errorf("speculative TotalXP = %d, want 10", res.TotalXP)
	}

	e.GrantXP(GrantRequest{Amount: 15, Source: domain.SourceHabit})

	// Nothing committed until the window closes.
	if store.TransactionCount() != 0 {
		t.Fatalf("TransactionCount = %d before flush, want 0", store.TransactionCount())
	}

	clock.Advance(500 * time.Millisecond)

	if store.TransactionCount() != 1 {
		t.Fatalf("TransactionCount = %d after flush, want exactly 1", store.TransactionCount())
	}
	total, err := e.TotalXP()
	if err != nil {
		t.Fatal(err)
	}
	if total != 25 {
		t.Errorf("TotalXP = %d, want 25", total)
	}
}

func TestBatch_EarlyFlushOnAmount(t *testing.T) {
	e, store, _ := newTestEngine(t, batchConfig())

	e.GrantXP(GrantRequest{Amount: 60, Source: domain.SourceHabit})
	if store.TransactionCount() != 0 {
		t.Fatal("batch flushed too early")
	}

	// Crossing 100 accumulated XP flushes immediately.
	e.GrantXP(GrantRequest{Amount: 50, Source: domain.SourceHabit})
	if store.TransactionCount() != 1 {
		t.Fatalf("TransactionCount = %d, want 1 after early flush", store.TransactionCount())
	}
}

func TestBatch_DominantSourceWins(t *testing.T) {
	cfg := batchConfig()
	cfg.SourceCaps = nil
	e, _, clock := newTestEngine(t, cfg)

	ch, unsub := e.Hub().Subscribe()
	defer unsub()

	e.GrantXP(GrantRequest{Amount: 10, Source: domain.SourceHabit})
	e.GrantXP(GrantRequest{Amount: 30, Source: domain.SourceGoalProgress, SourceID: "g1"})

	clock.Advance(500 * time.Millisecond)

	ev := <-ch
	if ev.Type != EventGrantApplied {
		t.Fatalf("event type = %s, want %s", ev.Type, EventGrantApplied)
	}
	if ev.Source != string(domain.SourceGoalProgress) {
		t.Errorf("batch source = %q, want dominant %q", ev.Source, domain.SourceGoalProgress)
	}
	if ev.Amount != 40 {
		t.Errorf("batch amount = %d, want 40", ev.Amount)
	}
}

func TestBatch_MilestoneSourceBypasses(t *testing.T) {
	e, store, _ := newTestEngine(t, batchConfig())

	res := e.GrantXP(GrantRequest{Amount: 50, Source: domain.SourceAchievement})
	if res.Batched {
		t.Fatal("achievement grant should not batch")
	}
	if store.TransactionCount() != 1 {
		t.Fatalf("TransactionCount = %d, want 1 (applied directly)", store.TransactionCount())
	}
}

func TestBatch_JournalBypasses(t *testing.T) {
	e, store, _ := newTestEngine(t, batchConfig())

	res := e.GrantXP(GrantRequest{Amount: 99, Source: domain.SourceJournal})
	if res.Batched {
		t.Fatal("journal grant should not batch")
	}
	if res.AmountGranted != 25 {
		t.Errorf("AmountGranted = %d, want position-1 amount 25", res.AmountGranted)
	}
	if store.TransactionCount() != 1 {
		t.Fatalf("TransactionCount = %d, want 1", store.TransactionCount())
	}
}

func TestBatch_FlushRespectsDailyCaps(t *testing.T) {
	cfg := batchConfig()
	cfg.SourceCaps = map[string]int64{"habit": 50}
	cfg.BatchMaxAmount = 1000
	e, _, clock := newTestEngine(t, cfg)

	// Each enqueue clamps individually against committed headroom, but the
	// flush re-checks the accumulated total.
	e.GrantXP(GrantRequest{Amount: 40, Source: domain.SourceHabit})
	e.GrantXP(GrantRequest{Amount: 40, Source: domain.SourceHabit})

	clock.Advance(500 * time.Millisecond)

	summary, err := e.DailySummary()
	if err != nil {
		t.Fatal(err)
	}
	if summary.HabitXP != 50 {
		t.Errorf("day's habit XP = %d, want capped 50", summary.HabitXP)
	}
}

func TestBatch_FlushPending(t *testing.T) {
	e, store, _ := newTestEngine(t, batchConfig())

	e.GrantXP(GrantRequest{Amount: 10, Source: domain.SourceHabit})
	e.FlushPending()

	if store.TransactionCount() != 1 {
		t.Fatalf("TransactionCount = %d after FlushPending, want 1", store.TransactionCount())
	}

	// Idempotent on an empty batch.
	e.FlushPending()
	if store.TransactionCount() != 1 {
		t.Fatal("FlushPending on empty batch wrote a transaction")
	}
}

func TestBatch_TimerNotRearmedAfterFlush(t *testing.T) {
	store := memstore.New()
	clock := schedule.NewFakeClock(testStart())
	e := New(store, clock, batchConfig(), nil)

	e.GrantXP(GrantRequest{Amount: 10, Source: domain.SourceHabit})
	clock.Advance(500 * time.Millisecond)

	before := store.TransactionCount()
	clock.Advance(5 * time.Second)
	if store.TransactionCount() != before {
		t.Fatal("stale batch timer fired again")
	}
}
