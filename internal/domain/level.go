package domain

import "fmt"

// ─── Level Calculator ───────────────────────────────────────────────────────
// Pure mapping from total XP to level. No side effects, no clock, safe to
// call from any goroutine without synchronization.
//
// Curve: total XP required to reach level L is 50·(L−1)². Level 1 starts at
// zero. The curve is strictly increasing, so LevelForXP is monotonic
// non-decreasing in totalXP.

// MilestoneInterval — every Nth level is a milestone celebration.
const MilestoneInterval = 5

// LevelInfo is the derived level snapshot for a given XP total.
type LevelInfo struct {
	Level       int     `json:"level"`
	XPToNext    int64   `json:"xp_to_next"`
	Progress    float64 `json:"progress"` // fraction [0,1) into the current level
	IsMilestone bool    `json:"is_milestone"`
}

// XPForLevel returns the cumulative XP required to reach a level.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return 50 * n * n
}

// LevelForXP computes the level snapshot for a total. Negative totals are
// treated as zero (the ledger clamps at the floor anyway).
func LevelForXP(totalXP int64) LevelInfo {
	if totalXP < 0 {
		totalXP = 0
	}

	level := 1
	for XPForLevel(level+1) <= totalXP {
		level++
	}

	floor := XPForLevel(level)
	ceil := XPForLevel(level + 1)
	span := ceil - floor

	return LevelInfo{
		Level:       level,
		XPToNext:    ceil - totalXP,
		Progress:    float64(totalXP-floor) / float64(span),
		IsMilestone: level%MilestoneInterval == 0,
	}
}

// ─── Level Titles ───────────────────────────────────────────────────────────

var levelTitles = []string{
	"Wanderer",     // 1–4
	"Pathfinder",   // 5–9
	"Trailwalker",  // 10–14
	"Explorer",     // 15–19
	"Voyager",      // 20–24
	"Summiteer",    // 25–29
	"Trailblazer",  // 30+
}

// TitleForLevel returns the display title for a level.
func TitleForLevel(level int) string {
	if level < 1 {
		level = 1
	}
	idx := level / MilestoneInterval
	if idx >= len(levelTitles) {
		idx = len(levelTitles) - 1
	}
	return fmt.Sprintf("%s (Lv. %d)", levelTitles[idx], level)
}
