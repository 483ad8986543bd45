package domain

import "time"

// ─── Monthly Challenge Types ────────────────────────────────────────────────
// Challenges and their progress are external inputs: the challenge system
// defines them, the reward calculator only scores completions.

// StarBaseRewards maps star level (1–5) to the fixed base reward.
var StarBaseRewards = [6]int64{0, 500, 750, 1125, 1556, 2532}

// BaseRewardForStars returns the base reward for a star level, clamping
// out-of-range input to the nearest valid tier.
func BaseRewardForStars(stars int) int64 {
	if stars < 1 {
		stars = 1
	}
	if stars > 5 {
		stars = 5
	}
	return StarBaseRewards[stars]
}

// MonthlyChallenge is a tiered month-long challenge definition.
type MonthlyChallenge struct {
	ID        string `json:"id"`
	Category  string `json:"category"` // habit, journal, goal, ...
	Month     string `json:"month"`    // "2006-01"
	StarLevel int    `json:"star_level"`
	Title     string `json:"title,omitempty"`
}

// BaseReward returns the fixed base reward for the challenge's tier.
func (c MonthlyChallenge) BaseReward() int64 {
	return BaseRewardForStars(c.StarLevel)
}

// ChallengeProgress is the completion snapshot for a challenge.
type ChallengeProgress struct {
	CompletionPct float64 `json:"completion_pct"` // 0–100
	Perfect       bool    `json:"perfect"`        // 100% with no missed days
}

// MonthRecord is one month in a category's rolling challenge history.
type MonthRecord struct {
	Month         string  `json:"month"`
	Completed     bool    `json:"completed"`
	CompletionPct float64 `json:"completion_pct"`
	StarLevel     int     `json:"star_level"`
	Perfect       bool    `json:"perfect"`
}

// MonthlyStreakData tracks consecutive-month completion per challenge
// category. History is trimmed to the most recent twelve months.
type MonthlyStreakData struct {
	Category       string        `json:"category"`
	CurrentStreak  int           `json:"current_streak"`
	LongestStreak  int           `json:"longest_streak"`
	TotalCompleted int           `json:"total_completed"`
	History        []MonthRecord `json:"history"`
}

// MonthlyHistoryLimit bounds the rolling per-category month history.
const MonthlyHistoryLimit = 12

// RewardTier labels how rich a monthly reward turned out relative to base.
type RewardTier string

const (
	TierStandard  RewardTier = "standard"
	TierExcellent RewardTier = "excellent"
	TierPerfect   RewardTier = "perfect"
	TierLegendary RewardTier = "legendary"
)

// TierForRatio maps total/base onto a reward tier label.
func TierForRatio(ratio float64) RewardTier {
	switch {
	case ratio >= 1.6:
		return TierLegendary
	case ratio >= 1.4:
		return TierPerfect
	case ratio >= 1.2:
		return TierExcellent
	default:
		return TierStandard
	}
}

// RewardBreakdown is the audited outcome of scoring one challenge
// completion. Retained only in a capped rolling history for analytics —
// the ledger row it produced is the authoritative record.
type RewardBreakdown struct {
	ChallengeID     string     `json:"challenge_id"`
	Category        string     `json:"category"`
	Month           string     `json:"month"`
	StarLevel       int        `json:"star_level"`
	BaseReward      int64      `json:"base_reward"`
	CompletionBonus int64      `json:"completion_bonus"`
	StreakBonus     int64      `json:"streak_bonus"`
	MilestoneBonus  int64      `json:"milestone_bonus"`
	Milestones      []string   `json:"milestones,omitempty"`
	TotalXPAwarded  int64      `json:"total_xp_awarded"`
	Tier            RewardTier `json:"tier"`
	CapApplied      bool       `json:"cap_applied"`
	FallbackUsed    bool       `json:"fallback_used,omitempty"`
	FallbackNote    string     `json:"fallback_note,omitempty"`
	AwardedAt       time.Time  `json:"awarded_at"`
}

// RewardHistoryLimit bounds the analytics history of reward breakdowns.
const RewardHistoryLimit = 50
