package engine

import (
	"fmt"
	"log"

	"github.com/trailhead-app/trailhead/internal/domain"
	"github.com/trailhead-app/trailhead/internal/infra/schedule"
)

// ─── Batching Aggregator ────────────────────────────────────────────────────
// Rapid small grants (a burst of habit checks, a goal slider dragged up)
// coalesce into one ledger write per window. The batch is keyed by nothing
// but time: everything pending when the window closes flushes together as a
// single append whose source is the dominant (largest-amount) contributor.
//
// The flush timer callback takes the engine lock before touching the
// batch, so flushes obey the same serialization discipline as every other
// ledger mutation. The flush appends through applyLocked directly, which
// cannot re-enter the aggregator.

type pendingGrant struct {
	req    GrantRequest
	amount int64 // guard-approved, multiplier-scaled
}

type batcher struct {
	pending  []pendingGrant
	bySource map[domain.XPSource]int64
	total    int64
	timer    schedule.Timer
}

func newBatcher() *batcher {
	return &batcher{bySource: make(map[domain.XPSource]int64)}
}

// addLocked enqueues an approved grant and returns a speculative result
// for the caller. Flushes early when the batch grows too wide or too
// heavy. Engine lock held.
func (e *Engine) addToBatchLocked(req GrantRequest, amount int64) (domain.GrantResult, []Event) {
	b := e.batch
	b.pending = append(b.pending, pendingGrant{req: req, amount: amount})
	b.bySource[req.Source] += amount
	b.total += amount

	if b.timer == nil {
		b.timer = e.clock.AfterFunc(e.cfg.BatchWindow, e.flushBatch)
	}

	var events []Event
	if len(b.bySource) >= e.cfg.BatchMaxSources || b.total >= e.cfg.BatchMaxAmount {
		_, events = e.flushBatchLocked()
	}

	speculativeTotal := e.committedTotalLocked() + b.total

	return domain.GrantResult{
		Success:         true,
		Batched:         true,
		RequestedAmount: req.Amount,
		AmountGranted:   amount,
		TotalXP:         speculativeTotal,
	}, events
}

// flushBatch is the window-expiry timer callback. It re-enters the engine
// through the serialization point rather than writing independently.
func (e *Engine) flushBatch() {
	e.mu.Lock()
	res, events := e.flushBatchLocked()
	e.mu.Unlock()

	e.publish(events)
	if res != nil && !res.Success {
		log.Printf("[engine] batch flush failed: %s", res.Reason)
	}
	if e.coord != nil {
		e.coord.ScheduleReconcile()
	}
}

// flushBatchLocked drains the pending batch into exactly one ledger
// append. Engine lock held.
func (e *Engine) flushBatchLocked() (*domain.GrantResult, []Event) {
	b := e.batch
	if len(b.pending) == 0 {
		return nil, nil
	}
	if b.timer != nil {
		b.timer.Stop()
	}

	// Dominant contributor becomes the batch's source.
	var dominant domain.XPSource
	var dominantAmount int64
	for src, amt := range b.bySource {
		if amt > dominantAmount || (amt == dominantAmount && string(src) < string(dominant)) {
			dominant, dominantAmount = src, amt
		}
	}

	total := b.total
	count := len(b.pending)
	b.pending = b.pending[:0]
	b.bySource = make(map[domain.XPSource]int64)
	b.total = 0
	b.timer = nil

	now := e.clock.Now()

	// Per-grant rules ran at enqueue time; the flush re-checks only the
	// caps so a wide batch cannot blow through the day's headroom.
	if e.cfg.EnforceLimits {
		factor := e.activeFactorLocked(now)
		headroom, err := e.dailyHeadroom(now.Format(domain.DateLayout), dominant, factor)
		if err != nil {
			res := e.storageFailureResultLocked(total, fmt.Errorf("batch headroom: %w", err))
			return &res, nil
		}
		if total > headroom {
			if headroom <= 0 {
				res := domain.GrantResult{Reason: ReasonDailyCap, RequestedAmount: total, TotalXP: e.committedTotalLocked()}
				return &res, nil
			}
			total = headroom
		}
	}

	req := GrantRequest{
		Amount:      total,
		Source:      dominant,
		Description: fmt.Sprintf("batched %d grants", count),
	}
	res, events := e.applyLocked(req, total, e.activeFactorLocked(now), now)
	return &res, events
}
