package domain

import "time"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Store abstracts the durable XP ledger and its derived aggregates.
//
// Append must apply the transaction insert, the daily-summary upsert, the
// singleton state update, and the optional level-up history row together.
// A backend that reports Transactional() == true guarantees all-or-nothing
// commit; a best-effort backend performs the writes independently and is an
// explicitly degraded-durability implementation.
type Store interface {
	// Append records one ledger mutation. state is the post-transaction
	// singleton state the caller computed under the serialization lock.
	Append(txn XPTransaction, state XPState, levelUp *LevelUpRecord) error

	// RollbackLast removes the most recent transaction and reverses its
	// effect on the state and daily summary. Error recovery only — returns
	// the removed transaction, or ErrNoTransactions.
	RollbackLast() (*XPTransaction, error)

	// State returns the committed singleton state. A fresh store returns a
	// zero state, not an error.
	State() (XPState, error)

	// DailySummary returns the aggregate for a calendar day (zero-valued
	// when the day has no transactions).
	DailySummary(date string) (DailyXPSummary, error)

	// CountSourceDay counts committed transactions for one source on a day.
	// The guard derives the journal-entry ordinal from it.
	CountSourceDay(date string, source XPSource) (int, error)

	// CountPositiveForEntity counts positive goal-spam-relevant grants for
	// one entity on a day.
	CountPositiveForEntity(date, sourceID string) (int, error)

	// ActivityWindow derives per-day activity signals for the trailing
	// window ending at endDate (inclusive), oldest first.
	ActivityWindow(endDate string, days int) ([]ActivityDay, error)

	// ActiveMultiplier returns the current multiplier, treating an expired
	// row as absent. Returns (nil, nil) when none is active.
	ActiveMultiplier(now time.Time) (*ActiveMultiplier, error)

	// InsertMultiplier stores a newly activated multiplier and marks any
	// stale rows inactive.
	InsertMultiplier(m ActiveMultiplier) error

	// LastActivation returns when a multiplier source last activated, or the
	// zero time if it never has. Cooldown enforcement reads it.
	LastActivation(source MultiplierSource) (time.Time, error)

	// MonthlyStreak returns a category's streak record, or (nil, nil) when
	// the category has never completed a challenge.
	MonthlyStreak(category string) (*MonthlyStreakData, error)

	// UpsertMonthlyStreak saves a category's streak record.
	UpsertMonthlyStreak(d MonthlyStreakData) error

	// Transactional reports whether Append is atomic.
	Transactional() bool

	Close() error
}

// ActivityProvider supplies the harmony engine with cross-category daily
// activity signals. The ledger-backed default derives them from committed
// transactions; richer collaborators (habit/journal/goal stores) may
// substitute their own.
type ActivityProvider interface {
	ActivityWindow(endDate string, days int) ([]ActivityDay, error)
}
