// Package sqlite is the durable ledger backend. It uses the pure-Go
// modernc.org/sqlite driver so the binary stays CGO-free.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle for the XP ledger.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and applies the
// schema. Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	raw, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// The ledger is single-writer by design; one connection keeps the
	// in-memory DSN coherent and sidesteps SQLITE_BUSY entirely.
	raw.SetMaxOpenConns(1)

	d := &DB{db: raw}
	if err := d.migrate(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// Transactional reports that Append commits atomically.
func (db *DB) Transactional() bool { return true }

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Append-only transaction log
		`CREATE TABLE IF NOT EXISTS xp_transactions (
			id          TEXT PRIMARY KEY,
			amount      INTEGER NOT NULL,
			source      TEXT NOT NULL,
			source_id   TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			date        TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			multiplier  REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_tx_date ON xp_transactions(date)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_tx_date_source ON xp_transactions(date, source)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_tx_entity ON xp_transactions(date, source_id)`,

		// Singleton derived state
		`CREATE TABLE IF NOT EXISTS xp_state (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			total_xp      INTEGER NOT NULL DEFAULT 0,
			current_level INTEGER NOT NULL DEFAULT 1,
			last_activity TEXT NOT NULL DEFAULT '',
			updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Per-day aggregate, keyed by date, never purged
		`CREATE TABLE IF NOT EXISTS xp_daily_summary (
			date              TEXT PRIMARY KEY,
			total_xp          INTEGER NOT NULL DEFAULT 0,
			habit_xp          INTEGER NOT NULL DEFAULT 0,
			journal_xp        INTEGER NOT NULL DEFAULT 0,
			goal_xp           INTEGER NOT NULL DEFAULT 0,
			achievement_xp    INTEGER NOT NULL DEFAULT 0,
			transaction_count INTEGER NOT NULL DEFAULT 0,
			updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Multiplier activations (at most one is_active=1 row)
		`CREATE TABLE IF NOT EXISTS xp_multipliers (
			id           TEXT PRIMARY KEY,
			source       TEXT NOT NULL,
			multiplier   REAL NOT NULL,
			activated_at TEXT NOT NULL,
			expires_at   TEXT NOT NULL,
			is_active    INTEGER NOT NULL DEFAULT 1,
			note         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mult_active ON xp_multipliers(is_active, expires_at)`,

		// Level-up audit trail
		`CREATE TABLE IF NOT EXISTS level_up_history (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			level               INTEGER NOT NULL,
			timestamp           TEXT NOT NULL,
			total_xp_at_levelup INTEGER NOT NULL,
			is_milestone        INTEGER NOT NULL DEFAULT 0
		)`,

		// Per-category monthly challenge streaks
		`CREATE TABLE IF NOT EXISTS monthly_streaks (
			category        TEXT PRIMARY KEY,
			current_streak  INTEGER NOT NULL DEFAULT 0,
			longest_streak  INTEGER NOT NULL DEFAULT 0,
			total_completed INTEGER NOT NULL DEFAULT 0,
			history_json    TEXT NOT NULL DEFAULT '[]',
			updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}
