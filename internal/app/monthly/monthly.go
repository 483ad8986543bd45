// Package monthly scores monthly challenge completions and pays the
// reward through the XP ledger. Challenges and their progress are external
// inputs; this package owns only the reward arithmetic and the
// per-category completion streak records.
package monthly

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/trailhead-app/trailhead/internal/app/engine"
	"github.com/trailhead-app/trailhead/internal/domain"
	"github.com/trailhead-app/trailhead/internal/infra/observability"
	"github.com/trailhead-app/trailhead/internal/infra/schedule"
)

const (
	// CompletionThreshold is the completion percentage below which a month
	// does not count as completed and earns no completion bonus.
	CompletionThreshold = 70.0

	completionBonusRate = 0.20
	streakBonusPerMonth = 100
	streakBonusMax      = 500
	rewardCapRatio      = 1.8

	bonusFirstCompletion = 150
	bonusMastery         = 200
	bonusPerfectQuarter  = 250
)

// Calculator scores challenge completions and issues the reward grants.
type Calculator struct {
	store  domain.Store
	engine *engine.Engine
	clock  schedule.Clock

	// mu serializes Award end to end: the streak record's
	// read-modify-write and the history append must not interleave
	// between concurrent awards.
	mu      sync.Mutex
	history []domain.RewardBreakdown
}

// New wires a calculator to the streak store and the ledger.
func New(store domain.Store, eng *engine.Engine, clock schedule.Clock) *Calculator {
	return &Calculator{store: store, engine: eng, clock: clock}
}

// ─── Scoring ────────────────────────────────────────────────────────────────

// Calculate scores a completion without touching the ledger or the streak
// records. Bonus steps are optional: if the streak record cannot be read,
// the result falls back to exactly the base reward with a fallback note.
func (c *Calculator) Calculate(ch domain.MonthlyChallenge, progress domain.ChallengeProgress) domain.RewardBreakdown {
	base := ch.BaseReward()
	b := domain.RewardBreakdown{
		ChallengeID: ch.ID,
		Category:    ch.Category,
		Month:       ch.Month,
		StarLevel:   ch.StarLevel,
		BaseReward:  base,
		AwardedAt:   c.clock.Now(),
	}

	completed := progress.CompletionPct >= CompletionThreshold
	if completed {
		b.CompletionBonus = int64(math.Round(float64(base) * completionBonusRate * progress.CompletionPct / 100))
	}

	streak, err := c.store.MonthlyStreak(ch.Category)
	if err != nil {
		// Optional steps failed: award exactly the base, never error out.
		log.Printf("[monthly] streak read failed, falling back to base reward: %v", err)
		b.CompletionBonus = 0
		b.TotalXPAwarded = base
		b.Tier = domain.TierForRatio(1)
		b.FallbackUsed = true
		b.FallbackNote = "streak data unavailable"
		return b
	}

	if completed && streak != nil && streak.CurrentStreak > 0 {
		// Streak value from before this month's completion.
		b.StreakBonus = int64(streak.CurrentStreak * streakBonusPerMonth)
		if b.StreakBonus > streakBonusMax {
			b.StreakBonus = streakBonusMax
		}
	}

	if completed {
		b.MilestoneBonus, b.Milestones = milestoneBonuses(streak, progress)
	}

	total := base + b.CompletionBonus + b.StreakBonus + b.MilestoneBonus
	if limit := int64(math.Round(float64(base) * rewardCapRatio)); total > limit {
		total = limit
		b.CapApplied = true
	}
	b.TotalXPAwarded = total
	b.Tier = domain.TierForRatio(float64(total) / float64(base))
	return b
}

// milestoneBonuses sums the distinguished completion bonuses, judged
// against the category's record from before this month.
func milestoneBonuses(streak *domain.MonthlyStreakData, progress domain.ChallengeProgress) (int64, []string) {
	var bonus int64
	var names []string

	if streak == nil || streak.TotalCompleted == 0 {
		bonus += bonusFirstCompletion
		names = append(names, "first_completion")
	}

	if progress.Perfect && streak != nil {
		priorPerfect := 0
		for _, m := range streak.History {
			if m.Perfect {
				priorPerfect++
			}
		}
		if priorPerfect >= 2 {
			bonus += bonusMastery
			names = append(names, "mastery")
		}

		perfectRun := 0
		for i := len(streak.History) - 1; i >= 0; i-- {
			if !streak.History[i].Perfect {
				break
			}
			perfectRun++
		}
		if perfectRun >= 2 {
			bonus += bonusPerfectQuarter
			names = append(names, "perfect_quarter")
		}
	}
	return bonus, names
}

// ─── Awarding ───────────────────────────────────────────────────────────────

// Award scores the completion, pays the reward through the ledger, updates
// the category's streak record, and retains the breakdown in the capped
// analytics history. Awards are serialized on the calculator.
func (c *Calculator) Award(ch domain.MonthlyChallenge, progress domain.ChallengeProgress) (domain.RewardBreakdown, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.Calculate(ch, progress)

	res := c.engine.GrantXP(engine.GrantRequest{
		Amount:      b.TotalXPAwarded,
		Source:      domain.SourceChallenge,
		SourceID:    ch.ID,
		Description: fmt.Sprintf("monthly challenge %s (%s, %d-star)", ch.Month, ch.Category, ch.StarLevel),
	})
	if !res.Success {
		return b, fmt.Errorf("award grant refused: %s", res.Reason)
	}
	b.TotalXPAwarded = res.AmountGranted

	if err := c.updateStreak(ch, progress); err != nil {
		// The grant stands; the streak record catches up next month.
		log.Printf("[monthly] streak update failed: %v", err)
	}

	observability.MonthlyRewards.WithLabelValues(string(b.Tier)).Inc()
	observability.MonthlyRewardXP.Add(float64(b.TotalXPAwarded))

	c.history = append(c.history, b)
	if len(c.history) > domain.RewardHistoryLimit {
		c.history = c.history[len(c.history)-domain.RewardHistoryLimit:]
	}

	return b, nil
}

// updateStreak folds this month's outcome into the category record.
func (c *Calculator) updateStreak(ch domain.MonthlyChallenge, progress domain.ChallengeProgress) error {
	completed := progress.CompletionPct >= CompletionThreshold

	streak, err := c.store.MonthlyStreak(ch.Category)
	if err != nil {
		return err
	}
	if streak == nil {
		streak = &domain.MonthlyStreakData{Category: ch.Category}
	}

	if completed {
		if consecutiveMonths(lastCompletedMonth(streak.History), ch.Month) {
			streak.CurrentStreak++
		} else {
			streak.CurrentStreak = 1
		}
		if streak.CurrentStreak > streak.LongestStreak {
			streak.LongestStreak = streak.CurrentStreak
		}
		streak.TotalCompleted++
	} else {
		streak.CurrentStreak = 0
	}

	streak.History = append(streak.History, domain.MonthRecord{
		Month:         ch.Month,
		Completed:     completed,
		CompletionPct: progress.CompletionPct,
		StarLevel:     ch.StarLevel,
		Perfect:       progress.Perfect,
	})
	if len(streak.History) > domain.MonthlyHistoryLimit {
		streak.History = streak.History[len(streak.History)-domain.MonthlyHistoryLimit:]
	}

	return c.store.UpsertMonthlyStreak(*streak)
}

func lastCompletedMonth(history []domain.MonthRecord) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Completed {
			return history[i].Month
		}
	}
	return ""
}

// consecutiveMonths reports whether next is the calendar month directly
// after prev.
func consecutiveMonths(prev, next string) bool {
	if prev == "" {
		return false
	}
	p, err := time.Parse("2006-01", prev)
	if err != nil {
		return false
	}
	return p.AddDate(0, 1, 0).Format("2006-01") == next
}

// History returns a copy of the retained reward breakdowns, newest last.
func (c *Calculator) History() []domain.RewardBreakdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.RewardBreakdown(nil), c.history...)
}
