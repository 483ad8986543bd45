package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/trailhead-app/trailhead/internal/domain"
)

// ─── Validation & Anti-Spam Guard ───────────────────────────────────────────
// Pure evaluation of a proposed grant against the day's committed ledger.
// No side effects; the caller holds the engine lock, so the counts it reads
// cannot move underneath it.

// Rejection reasons. These are result values, not errors.
const (
	ReasonJournalLimit = "journal_daily_limit"
	ReasonGoalSpam     = "goal_spam_limit"
	ReasonCeiling      = "single_grant_ceiling"
	ReasonDailyCap     = "daily_cap_reached"
	ReasonRateLimited  = "rate_limited"
)

// validateGrant runs the guard checks in order:
// journal position rule, per-goal anti-spam, single-transaction ceiling,
// daily caps (clamping to remaining headroom), minimum-interval rate limit.
// factor is the active multiplier's factor (1 when none); it scales both
// the grant amount and the caps.
func (e *Engine) validateGrant(req GrantRequest, now time.Time, factor float64) (domain.ValidationResult, error) {
	amount := req.Amount
	today := now.Format(domain.DateLayout)

	if !e.cfg.EnforceLimits {
		return domain.ValidationResult{Accepted: true, AllowedAmount: scaleAmount(amount, factor)}, nil
	}

	// (a) Journal position rule — the Nth journal grant of the day earns a
	// fixed amount regardless of what was requested.
	if req.Source == domain.SourceJournal {
		n, err := e.store.CountSourceDay(today, domain.SourceJournal)
		if err != nil {
			return domain.ValidationResult{}, fmt.Errorf("count journal grants: %w", err)
		}
		position := n + 1
		switch {
		case position > e.cfg.JournalDailyLimit:
			return domain.ValidationResult{Reason: ReasonJournalLimit}, nil
		case position <= e.cfg.JournalEarlyCount:
			amount = e.cfg.JournalEarlyAmount
		default:
			amount = e.cfg.JournalLateAmount
		}
	}

	// (b) Per-goal anti-spam — at most N positive progress/milestone grants
	// per goal per day. The counter is derived from committed transactions.
	if req.Source.CountsTowardGoalSpam() && req.SourceID != "" && amount > 0 {
		n, err := e.store.CountPositiveForEntity(today, req.SourceID)
		if err != nil {
			return domain.ValidationResult{}, fmt.Errorf("count goal grants: %w", err)
		}
		if n >= e.cfg.GoalDailyGrantLimit {
			return domain.ValidationResult{Reason: ReasonGoalSpam}, nil
		}
	}

	scaled := scaleAmount(amount, factor)

	if !req.Source.ExemptFromCaps() {
		// (c) Absolute single-transaction ceiling.
		if e.cfg.SingleGrantCeiling > 0 && scaled > e.cfg.SingleGrantCeiling {
			return domain.ValidationResult{Reason: ReasonCeiling}, nil
		}

		// (d) Daily caps, scaled by the multiplier. Excess clamps to
		// remaining headroom; zero headroom fails.
		headroom, err := e.dailyHeadroom(today, req.Source, factor)
		if err != nil {
			return domain.ValidationResult{}, err
		}
		if scaled > headroom {
			if headroom <= 0 {
				return domain.ValidationResult{Reason: ReasonDailyCap}, nil
			}
			scaled = headroom
		}
	}

	// (e) Minimum-interval rate limit, bypassed for milestone/completion
	// sources.
	if !req.Source.IsMilestone() && e.cfg.MinGrantInterval > 0 && !e.lastGrantAt.IsZero() {
		if now.Sub(e.lastGrantAt) < e.cfg.MinGrantInterval {
			return domain.ValidationResult{Reason: ReasonRateLimited}, nil
		}
	}

	return domain.ValidationResult{Accepted: true, AllowedAmount: scaled}, nil
}

// dailyHeadroom returns how much more XP today's ledger can accept for a
// source: the minimum of total-cap headroom and per-source-cap headroom.
// Callers treat <= 0 as exhausted.
func (e *Engine) dailyHeadroom(today string, source domain.XPSource, factor float64) (int64, error) {
	summary, err := e.store.DailySummary(today)
	if err != nil {
		return 0, fmt.Errorf("read daily summary: %w", err)
	}

	headroom := int64(math.MaxInt64)
	if e.cfg.DailyCap > 0 {
		headroom = scaleCap(e.cfg.DailyCap, factor) - summary.TotalXP
	}
	if limit, ok := e.cfg.SourceCaps[source.Category()]; ok && limit > 0 {
		if h := scaleCap(limit, factor) - summary.CategoryTotal(source.Category()); h < headroom {
			headroom = h
		}
	}
	return headroom, nil
}

// scaleAmount applies a multiplier factor to a grant amount.
func scaleAmount(amount int64, factor float64) int64 {
	if factor <= 0 || factor == 1 {
		return amount
	}
	return int64(math.Round(float64(amount) * factor))
}

// scaleCap widens a cap under an active multiplier so the boosted economy
// does not starve itself.
func scaleCap(limit int64, factor float64) int64 {
	if factor <= 1 {
		return limit
	}
	return int64(math.Round(float64(limit) * factor))
}
