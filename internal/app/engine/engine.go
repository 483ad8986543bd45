package engine

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trailhead-app/trailhead/internal/domain"
	"github.com/trailhead-app/trailhead/internal/infra/observability"
	"github.com/trailhead-app/trailhead/internal/infra/schedule"
)

// GrantRequest is a proposed ledger mutation.
type GrantRequest struct {
	Amount      int64           `json:"amount"`
	Source      domain.XPSource `json:"source"`
	SourceID    string          `json:"source_id,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Engine owns the XP ledger. It holds its storage handle, clock, and
// configuration explicitly — no ambient singletons — so tests construct it
// with a fake clock and an in-memory store.
type Engine struct {
	mu    sync.Mutex // THE serialization point for all ledger mutations
	store domain.Store
	clock schedule.Clock
	cfg   Config
	hub   *Hub
	batch *batcher
	coord *Coordinator

	lastGrantAt time.Time
}

// New constructs an engine on a store. listener (optional) receives
// optimistic/authoritative total publications for UI feedback.
func New(store domain.Store, clock schedule.Clock, cfg Config, listener TotalListener) *Engine {
	e := &Engine{
		store: store,
		clock: clock,
		cfg:   cfg,
		hub:   NewHub(),
		batch: newBatcher(),
	}
	e.coord = NewCoordinator(clock, cfg, e.committedTotal, listener)

	if !store.Transactional() {
		log.Printf("[engine] store is non-transactional: ledger writes are best-effort, not durable")
	}
	return e
}

// Hub returns the post-commit event hub.
func (e *Engine) Hub() *Hub { return e.hub }

// Coordinator returns the optimistic total coordinator.
func (e *Engine) Coordinator() *Coordinator { return e.coord }

// Clock returns the engine's clock (shared with collaborating services).
func (e *Engine) Clock() schedule.Clock { return e.clock }

// ─── Public Operations ──────────────────────────────────────────────────────

// GrantXP proposes a positive ledger mutation. The guard may clamp or
// reject it; qualifying sources may be coalesced into a pending batch.
// Unexpected internal failures degrade to a safe failure result carrying a
// freshly re-read authoritative total.
func (e *Engine) GrantXP(req GrantRequest) (res domain.GrantResult) {
	defer e.recoverBoundary(&res, req)

	if req.Amount <= 0 {
		return domain.GrantResult{Reason: domain.ErrZeroAmount.Error(), RequestedAmount: req.Amount, TotalXP: e.committedTotalSafe()}
	}

	var speculated bool
	if e.cfg.OptimisticEnabled && !e.cfg.BatchingEnabled {
		// Immediate UI feedback; corrected below against the committed
		// result. Skipped for batched grants — the batch path publishes
		// its own speculative total.
		e.coord.Speculate(req.Amount)
		speculated = true
	}

	res, events := e.grantSerialized(req)

	if speculated {
		if res.Success {
			e.coord.Confirm(res.TotalXP)
		} else {
			e.coord.Revert()
		}
	}
	e.publish(events)
	e.coord.ScheduleReconcile()
	return res
}

// RevokeXP removes XP (error corrections, habit un-checks). The amount is
// clamped at the zero floor and the clamped value is what the ledger
// records. Revokes share the grant path's serialization point; daily caps
// do not apply (caps bound earnings, not corrections).
func (e *Engine) RevokeXP(req GrantRequest) (res domain.GrantResult) {
	defer e.recoverBoundary(&res, req)

	if req.Amount <= 0 {
		return domain.GrantResult{Reason: domain.ErrZeroAmount.Error(), RequestedAmount: req.Amount, TotalXP: e.committedTotalSafe()}
	}

	res, events := e.revokeSerialized(req)
	e.publish(events)
	e.coord.ScheduleReconcile()
	return res
}

// TotalXP returns the committed authoritative total.
func (e *Engine) TotalXP() (int64, error) {
	state, err := e.store.State()
	if err != nil {
		return 0, err
	}
	return state.TotalXP, nil
}

// State returns the committed singleton state.
func (e *Engine) State() (domain.XPState, error) { return e.store.State() }

// DailySummary returns today's aggregate.
func (e *Engine) DailySummary() (domain.DailyXPSummary, error) {
	return e.store.DailySummary(e.clock.Now().Format(domain.DateLayout))
}

// DailySummaryFor returns the aggregate for a specific day.
func (e *Engine) DailySummaryFor(date string) (domain.DailyXPSummary, error) {
	return e.store.DailySummary(date)
}

// FlushPending forces any pending batch out immediately. Shutdown hook.
func (e *Engine) FlushPending() {
	e.flushBatch()
}

// ─── Serialized Mutation Paths ──────────────────────────────────────────────

func (e *Engine) grantSerialized(req GrantRequest) (domain.GrantResult, []Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	factor := e.activeFactorLocked(now)
	if req.Source == domain.SourceMultiplierBonus || req.Source == domain.SourceChallenge {
		// Activation bonuses are flat, and monthly rewards arrive fully
		// computed. Neither is scaled by an active multiplier.
		factor = 1
	}

	v, err := e.validateGrant(req, now, factor)
	if err != nil {
		res := e.storageFailureResultLocked(req.Amount, err)
		return res, nil
	}
	if !v.Accepted {
		observability.XPRejected.WithLabelValues(v.Reason).Inc()
		return domain.GrantResult{
			Reason:          v.Reason,
			RequestedAmount: req.Amount,
			TotalXP:         e.committedTotalLocked(),
		}, nil
	}

	if e.cfg.BatchingEnabled && !req.Source.BypassesBatching() {
		observability.XPBatched.Inc()
		return e.addToBatchLocked(req, v.AllowedAmount)
	}

	return e.applyLocked(req, v.AllowedAmount, factor, now)
}

func (e *Engine) revokeSerialized(req GrantRequest) (domain.GrantResult, []Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	total := e.committedTotalLocked()

	// Clamp at the floor: totalXP never goes negative, and the clamped
	// value is what gets recorded.
	clamped := req.Amount
	if clamped > total {
		clamped = total
	}
	if clamped == 0 {
		return domain.GrantResult{
			Success:         true,
			RequestedAmount: req.Amount,
			AmountGranted:   0,
			TotalXP:         total,
			PreviousLevel:   domain.LevelForXP(total).Level,
			NewLevel:        domain.LevelForXP(total).Level,
		}, nil
	}

	neg := req
	neg.Amount = -clamped
	return e.applyLocked(neg, -clamped, 0, now)
}

// applyLocked performs the single authoritative ledger append. Engine lock
// held. amount is final (guard-approved and multiplier-scaled); factor is
// recorded on the transaction when > 1.
func (e *Engine) applyLocked(req GrantRequest, amount int64, factor float64, now time.Time) (domain.GrantResult, []Event) {
	state, err := e.store.State()
	if err != nil {
		return e.storageFailureResultLocked(req.Amount, err), nil
	}

	prevTotal := state.TotalXP
	prevLevel := domain.LevelForXP(prevTotal).Level

	newTotal := prevTotal + amount
	if newTotal < 0 {
		newTotal = 0
	}
	info := domain.LevelForXP(newTotal)

	var levelUpRec *domain.LevelUpRecord
	var levelUpInfo *domain.LevelUpInfo
	if info.Level > prevLevel {
		levelUpRec = &domain.LevelUpRecord{
			Level:       info.Level,
			Timestamp:   now,
			TotalXP:     newTotal,
			IsMilestone: info.IsMilestone,
		}
		levelUpInfo = &domain.LevelUpInfo{
			PreviousLevel: prevLevel,
			NewLevel:      info.Level,
			Title:         domain.TitleForLevel(info.Level),
			IsMilestone:   info.IsMilestone,
		}
	}

	recordedFactor := 0.0
	if factor > 1 {
		recordedFactor = factor
	}
	txn := domain.XPTransaction{
		ID:          uuid.NewString(),
		Amount:      amount,
		Source:      req.Source,
		SourceID:    req.SourceID,
		Description: req.Description,
		Date:        now.Format(domain.DateLayout),
		CreatedAt:   now,
		Multiplier:  recordedFactor,
	}
	newState := domain.XPState{
		TotalXP:      newTotal,
		CurrentLevel: info.Level,
		LastActivity: now,
	}

	if err := e.store.Append(txn, newState, levelUpRec); err != nil {
		return e.storageFailureResultLocked(req.Amount, err), nil
	}

	e.lastGrantAt = now

	observability.XPGranted.WithLabelValues(string(req.Source)).Add(float64(amount))
	observability.XPTotal.Set(float64(newTotal))
	observability.CurrentLevel.Set(float64(info.Level))

	events := []Event{grantAppliedEvent(amount, string(req.Source), newTotal, now)}
	if levelUpInfo != nil {
		observability.LevelUps.Inc()
		events = append(events, levelUpEvent(prevLevel, info.Level, levelUpInfo.Title, levelUpInfo.IsMilestone, now))
	}

	return domain.GrantResult{
		Success:          true,
		RequestedAmount:  req.Amount,
		AmountGranted:    amount,
		TotalXP:          newTotal,
		PreviousLevel:    prevLevel,
		NewLevel:         info.Level,
		LeveledUp:        levelUpInfo != nil,
		MilestoneReached: levelUpInfo != nil && levelUpInfo.IsMilestone,
		LevelUp:          levelUpInfo,
	}, events
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// activeFactorLocked reads the active multiplier's factor (1 when none).
func (e *Engine) activeFactorLocked(now time.Time) float64 {
	m, err := e.store.ActiveMultiplier(now)
	if err != nil {
		log.Printf("[engine] could not read active multiplier: %v", err)
		return 1
	}
	if m == nil {
		return 1
	}
	return m.Factor
}

// ActiveMultiplier returns the current multiplier or nil.
func (e *Engine) ActiveMultiplier() (*domain.ActiveMultiplier, error) {
	return e.store.ActiveMultiplier(e.clock.Now())
}

func (e *Engine) committedTotal() (int64, error) {
	state, err := e.store.State()
	if err != nil {
		return 0, err
	}
	return state.TotalXP, nil
}

func (e *Engine) committedTotalLocked() int64 {
	total, err := e.committedTotal()
	if err != nil {
		log.Printf("[engine] could not read committed total: %v", err)
		return 0
	}
	return total
}

func (e *Engine) committedTotalSafe() int64 {
	total, _ := e.committedTotal()
	return total
}

// storageFailureResultLocked builds the failure result for a storage
// error: the caller gets the pre-attempt authoritative total re-read from
// the store, never an assumed value.
func (e *Engine) storageFailureResultLocked(requested int64, err error) domain.GrantResult {
	log.Printf("[engine] storage failure: %v", err)
	observability.StorageFailures.Inc()
	return domain.GrantResult{
		Reason:          "storage_failure",
		RequestedAmount: requested,
		TotalXP:         e.committedTotalLocked(),
	}
}

// recoverBoundary catches unexpected internal panics at the public
// operation boundary and degrades to a safe failure result.
func (e *Engine) recoverBoundary(res *domain.GrantResult, req GrantRequest) {
	if r := recover(); r != nil {
		log.Printf("[engine] recovered from internal error: %v", r)
		*res = domain.GrantResult{
			Reason:          "internal_error",
			RequestedAmount: req.Amount,
			TotalXP:         e.committedTotalSafe(),
		}
	}
}

func (e *Engine) publish(events []Event) {
	for _, ev := range events {
		e.hub.Publish(ev)
	}
}
