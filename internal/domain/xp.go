// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import "time"

// DateLayout is the calendar-day key used throughout the ledger.
const DateLayout = "2006-01-02"

// ─── XP Sources ─────────────────────────────────────────────────────────────

// XPSource identifies the activity that earned (or lost) the XP.
type XPSource string

const (
	SourceHabit           XPSource = "habit"
	SourceHabitMilestone  XPSource = "habit_milestone"
	SourceJournal         XPSource = "journal"
	SourceGoalProgress    XPSource = "goal_progress"
	SourceGoalMilestone   XPSource = "goal_milestone"
	SourceGoalCompleted   XPSource = "goal_completed"
	SourceAchievement     XPSource = "achievement"
	SourceChallenge       XPSource = "challenge"
	SourceMultiplierBonus XPSource = "multiplier_bonus"
)

// Category maps a source onto the daily-summary bucket it accumulates in.
func (s XPSource) Category() string {
	switch s {
	case SourceHabit, SourceHabitMilestone:
		return "habit"
	case SourceJournal:
		return "journal"
	case SourceGoalProgress, SourceGoalMilestone, SourceGoalCompleted:
		return "goal"
	default:
		return "achievement"
	}
}

// Milestone sources represent one-off completions. They bypass the
// minimum-interval rate limit so a burst of celebrations is never dropped.
func (s XPSource) IsMilestone() bool {
	switch s {
	case SourceHabitMilestone, SourceGoalMilestone, SourceGoalCompleted,
		SourceAchievement, SourceChallenge, SourceMultiplierBonus:
		return true
	}
	return false
}

// BypassesBatching reports whether a grant from this source must be applied
// directly. Milestone-type sources need immediate visual feedback; journal
// grants carry a day-position amount derived from committed rows, which
// coalescing would corrupt.
func (s XPSource) BypassesBatching() bool { return s.IsMilestone() || s == SourceJournal }

// ExemptFromCaps reports whether grants from this source skip the
// single-transaction ceiling and the daily caps. Monthly challenge payouts
// exceed every user-facing cap and are system-issued, not spammable.
func (s XPSource) ExemptFromCaps() bool { return s == SourceChallenge }

// CountsTowardGoalSpam reports whether the per-goal daily anti-spam counter
// includes grants from this source.
func (s XPSource) CountsTowardGoalSpam() bool {
	return s == SourceGoalProgress || s == SourceGoalMilestone
}

// ─── Ledger Types ───────────────────────────────────────────────────────────

// XPTransaction is a single immutable row in the XP ledger.
// Only the most recent entry may ever be removed (rollback recovery).
type XPTransaction struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"` // signed; negative = revoke
	Source      XPSource  `json:"source"`
	SourceID    string    `json:"source_id,omitempty"` // habit/goal/journal entity
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date"` // calendar day, DateLayout
	CreatedAt   time.Time `json:"created_at"`
	Multiplier  float64   `json:"multiplier,omitempty"` // 0 when none applied
}

// XPState is the singleton derived state of the ledger.
type XPState struct {
	TotalXP      int64     `json:"total_xp"`
	CurrentLevel int       `json:"current_level"`
	LastActivity time.Time `json:"last_activity"`
}

// DailyXPSummary aggregates one calendar day. Derived data — it can always
// be rebuilt from the transaction log, and is never purged.
type DailyXPSummary struct {
	Date             string `json:"date"`
	TotalXP          int64  `json:"total_xp"`
	HabitXP          int64  `json:"habit_xp"`
	JournalXP        int64  `json:"journal_xp"`
	GoalXP           int64  `json:"goal_xp"`
	AchievementXP    int64  `json:"achievement_xp"`
	TransactionCount int    `json:"transaction_count"`
}

// CategoryTotal returns the subtotal for a summary bucket.
func (d DailyXPSummary) CategoryTotal(category string) int64 {
	switch category {
	case "habit":
		return d.HabitXP
	case "journal":
		return d.JournalXP
	case "goal":
		return d.GoalXP
	case "achievement":
		return d.AchievementXP
	default:
		return 0
	}
}

// LevelUpRecord is an audit row written whenever a grant crosses a level
// boundary.
type LevelUpRecord struct {
	Level       int       `json:"level"`
	Timestamp   time.Time `json:"timestamp"`
	TotalXP     int64     `json:"total_xp_at_levelup"`
	IsMilestone bool      `json:"is_milestone"`
}

// ─── Multipliers ────────────────────────────────────────────────────────────

// MultiplierSource identifies what activated a multiplier.
type MultiplierSource string

const (
	MultiplierHarmony  MultiplierSource = "harmony"
	MultiplierComeback MultiplierSource = "comeback"
)

// ActiveMultiplier is a time-boxed XP scaling window. At most one exists at
// any moment; an expired record is treated as absent (lazy expiry).
type ActiveMultiplier struct {
	ID          string           `json:"id"`
	Source      MultiplierSource `json:"source"`
	Factor      float64          `json:"factor"`
	ActivatedAt time.Time        `json:"activated_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Note        string           `json:"note,omitempty"`
}

// ExpiredAt reports whether the multiplier window has closed.
func (m ActiveMultiplier) ExpiredAt(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// ─── Activity Signals ───────────────────────────────────────────────────────

// ActivityDay is the per-day cross-category activity signal consumed by the
// harmony streak scan. Collaborators (habit/journal/goal stores) supply it.
type ActivityDay struct {
	Date           string `json:"date"`
	HabitDone      bool   `json:"habit_done"`
	JournalEntries int    `json:"journal_entries"`
	GoalProgress   bool   `json:"goal_progress"`
}

// Harmonious reports whether all three categories were active that day.
// Journaling qualifies at three or more entries.
func (a ActivityDay) Harmonious() bool {
	return a.HabitDone && a.JournalEntries >= 3 && a.GoalProgress
}

// HarmonyStreak is the result of the rolling 30-day harmony scan.
type HarmonyStreak struct {
	CurrentDays    int `json:"current_days"`
	LongestDays    int `json:"longest_days"`
	QualifyingDays int `json:"qualifying_days"` // total harmonious days in window
}

// ─── Operation Results ──────────────────────────────────────────────────────

// ValidationResult is the guard's verdict on a proposed grant.
type ValidationResult struct {
	Accepted      bool   `json:"accepted"`
	AllowedAmount int64  `json:"allowed_amount"`
	Reason        string `json:"reason,omitempty"`
}

// LevelUpInfo describes a level transition caused by a grant.
type LevelUpInfo struct {
	PreviousLevel int    `json:"previous_level"`
	NewLevel      int    `json:"new_level"`
	Title         string `json:"title"`
	IsMilestone   bool   `json:"is_milestone"`
}

// GrantResult is the shape every public ledger mutation returns.
type GrantResult struct {
	Success          bool         `json:"success"`
	Reason           string       `json:"reason,omitempty"`
	RequestedAmount  int64        `json:"requested_amount"`
	AmountGranted    int64        `json:"amount_granted"`
	TotalXP          int64        `json:"total_xp"`
	PreviousLevel    int          `json:"previous_level"`
	NewLevel         int          `json:"new_level"`
	LeveledUp        bool         `json:"leveled_up"`
	MilestoneReached bool         `json:"milestone_reached"`
	LevelUp          *LevelUpInfo `json:"level_up,omitempty"`
	Batched          bool         `json:"batched,omitempty"` // applied via a pending batch
}
