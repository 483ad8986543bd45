package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.
// Expected negative outcomes (cap reached, streak too short, multiplier
// already active) are result values, not errors; only genuine failures of
// the machinery live here.

var (
	// Ledger errors
	ErrLedgerClosed   = errors.New("ledger store is closed")
	ErrNoTransactions = errors.New("ledger has no transactions to roll back")
	ErrStateMissing   = errors.New("singleton XP state row missing")

	// Storage errors
	ErrCommitFailed   = errors.New("atomic ledger write could not commit")
	ErrUnknownBackend = errors.New("unknown storage backend")

	// Input errors
	ErrZeroAmount    = errors.New("grant amount must be non-zero")
	ErrUnknownSource = errors.New("unknown XP source")
	ErrBadChallenge  = errors.New("challenge is missing category or month")
)
