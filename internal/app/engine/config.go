// Package engine implements the XP economy core: the serialized ledger
// writer, the validation and anti-spam guard, the batching aggregator, the
// optimistic total coordinator, and post-commit event dispatch.
//
// Every ledger mutation — grant, revoke, batch flush, multiplier bonus,
// monthly award — passes through one mutex so at most one mutation is in
// flight at a time. The optimistic cache path never writes durable state
// and is exempt from that discipline.
package engine

import "time"

// Config controls engine behavior. Limits are explicit construction-time
// configuration — never inferred from the runtime environment.
type Config struct {
	// EnforceLimits disables every guard check when false. Tests that need
	// raw ledger arithmetic construct the engine with it off.
	EnforceLimits bool

	// Caps. SourceCaps is keyed by daily-summary category
	// (habit/journal/goal/achievement); a missing key means uncapped for
	// that category. Both caps are scaled by an active multiplier's factor.
	DailyCap           int64
	SourceCaps         map[string]int64
	SingleGrantCeiling int64

	// Journal position rule: grants 1..JournalEarlyCount earn
	// JournalEarlyAmount, grants up to JournalDailyLimit earn
	// JournalLateAmount, anything later earns nothing.
	JournalEarlyAmount int64
	JournalLateAmount  int64
	JournalEarlyCount  int
	JournalDailyLimit  int

	// GoalDailyGrantLimit bounds positive progress/milestone grants per
	// goal per day.
	GoalDailyGrantLimit int

	// MinGrantInterval rate-limits consecutive grants. Milestone-type
	// sources bypass it.
	MinGrantInterval time.Duration

	// Batching window.
	BatchingEnabled bool
	BatchWindow     time.Duration
	BatchMaxSources int
	BatchMaxAmount  int64

	// Optimistic total cache.
	OptimisticEnabled  bool
	OptimisticTTL      time.Duration
	ReconcileDebounce  time.Duration
	ReconcileTolerance int64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		EnforceLimits: true,

		DailyCap: 1000,
		SourceCaps: map[string]int64{
			"habit":       300,
			"journal":     150,
			"goal":        300,
			"achievement": 600,
		},
		SingleGrantCeiling: 500,

		JournalEarlyAmount: 25,
		JournalLateAmount:  5,
		JournalEarlyCount:  3,
		JournalDailyLimit:  13,

		GoalDailyGrantLimit: 3,
		MinGrantInterval:    2 * time.Second,

		BatchingEnabled: true,
		BatchWindow:     500 * time.Millisecond,
		BatchMaxSources: 4,
		BatchMaxAmount:  100,

		OptimisticEnabled:  true,
		OptimisticTTL:      100 * time.Millisecond,
		ReconcileDebounce:  50 * time.Millisecond,
		ReconcileTolerance: 0,
	}
}
