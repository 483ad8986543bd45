// Ledger operations: the transaction log, the singleton state, the per-day
// aggregates, multiplier windows, and monthly streak records. Every
// mutation in Append commits in one SQLite transaction — all-or-nothing.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trailhead-app/trailhead/internal/domain"
)

// ─── Append / Rollback ──────────────────────────────────────────────────────

// Append writes the transaction, updates the daily summary for its date,
// and updates the singleton state, all inside one commit. A failure of any
// write rolls the whole mutation back.
func (db *DB) Append(txn domain.XPTransaction, state domain.XPState, levelUp *domain.LevelUpRecord) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO xp_transactions (id, amount, source, source_id, description, date, created_at, multiplier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.Amount, string(txn.Source), txn.SourceID, txn.Description,
		txn.Date, txn.CreatedAt.Format(time.RFC3339Nano), txn.Multiplier)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if err := upsertSummary(tx, txn.Date, txn.Source.Category(), txn.Amount, +1); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO xp_state (id, total_xp, current_level, last_activity, updated_at)
		VALUES (1, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			total_xp      = excluded.total_xp,
			current_level = excluded.current_level,
			last_activity = excluded.last_activity,
			updated_at    = datetime('now')
	`, state.TotalXP, state.CurrentLevel, state.LastActivity.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	if levelUp != nil {
		_, err = tx.Exec(`
			INSERT INTO level_up_history (level, timestamp, total_xp_at_levelup, is_milestone)
			VALUES (?, ?, ?, ?)
		`, levelUp.Level, levelUp.Timestamp.Format(time.RFC3339Nano), levelUp.TotalXP, boolToInt(levelUp.IsMilestone))
		if err != nil {
			return fmt.Errorf("insert level-up: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}
	return nil
}

// RollbackLast removes the most recent transaction and reverses its effect
// on the state and daily summary. Error recovery only.
func (db *DB) RollbackLast() (*domain.XPTransaction, error) {
	tx, err := db.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var txn domain.XPTransaction
	var createdStr string
	err = tx.QueryRow(`
		SELECT id, amount, source, source_id, description, date, created_at, multiplier
		FROM xp_transactions ORDER BY created_at DESC, rowid DESC LIMIT 1
	`).Scan(&txn.ID, &txn.Amount, (*string)(&txn.Source), &txn.SourceID,
		&txn.Description, &txn.Date, &createdStr, &txn.Multiplier)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoTransactions
	}
	if err != nil {
		return nil, fmt.Errorf("find last transaction: %w", err)
	}
	txn.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	if _, err := tx.Exec(`DELETE FROM xp_transactions WHERE id = ?`, txn.ID); err != nil {
		return nil, fmt.Errorf("delete transaction: %w", err)
	}

	if err := upsertSummary(tx, txn.Date, txn.Source.Category(), -txn.Amount, -1); err != nil {
		return nil, err
	}

	var total int64
	if err := tx.QueryRow(`SELECT total_xp FROM xp_state WHERE id = 1`).Scan(&total); err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	total -= txn.Amount
	if total < 0 {
		total = 0
	}
	level := domain.LevelForXP(total).Level
	_, err = tx.Exec(`
		UPDATE xp_state SET total_xp = ?, current_level = ?, updated_at = datetime('now') WHERE id = 1
	`, total, level)
	if err != nil {
		return nil, fmt.Errorf("reverse state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}
	return &txn, nil
}

// upsertSummary folds an amount delta and a row-count delta into a day's
// aggregate row.
func upsertSummary(tx *sql.Tx, date, category string, amount int64, countDelta int) error {
	column := map[string]string{
		"habit":       "habit_xp",
		"journal":     "journal_xp",
		"goal":        "goal_xp",
		"achievement": "achievement_xp",
	}[category]
	if column == "" {
		return fmt.Errorf("%w: category %q", domain.ErrUnknownSource, category)
	}

	q := fmt.Sprintf(`
		INSERT INTO xp_daily_summary (date, total_xp, %[1]s, transaction_count, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(date) DO UPDATE SET
			total_xp          = total_xp + excluded.total_xp,
			%[1]s             = %[1]s + excluded.%[1]s,
			transaction_count = transaction_count + excluded.transaction_count,
			updated_at        = datetime('now')
	`, column)
	if _, err := tx.Exec(q, date, amount, amount, countDelta); err != nil {
		return fmt.Errorf("upsert daily summary: %w", err)
	}
	return nil
}

// ─── Read Paths ─────────────────────────────────────────────────────────────

// State returns the committed singleton state. A fresh ledger yields the
// zero state at level 1.
func (db *DB) State() (domain.XPState, error) {
	var s domain.XPState
	var lastStr string
	err := db.db.QueryRow(`
		SELECT total_xp, current_level, last_activity FROM xp_state WHERE id = 1
	`).Scan(&s.TotalXP, &s.CurrentLevel, &lastStr)
	if err == sql.ErrNoRows {
		return domain.XPState{CurrentLevel: 1}, nil
	}
	if err != nil {
		return s, fmt.Errorf("read state: %w", err)
	}
	s.LastActivity, _ = time.Parse(time.RFC3339Nano, lastStr)
	return s, nil
}

// DailySummary returns the aggregate for one calendar day.
func (db *DB) DailySummary(date string) (domain.DailyXPSummary, error) {
	s := domain.DailyXPSummary{Date: date}
	err := db.db.QueryRow(`
		SELECT total_xp, habit_xp, journal_xp, goal_xp, achievement_xp, transaction_count
		FROM xp_daily_summary WHERE date = ?
	`, date).Scan(&s.TotalXP, &s.HabitXP, &s.JournalXP, &s.GoalXP, &s.AchievementXP, &s.TransactionCount)
	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read daily summary: %w", err)
	}
	return s, nil
}

// CountSourceDay counts committed transactions for one source on a day.
func (db *DB) CountSourceDay(date string, source domain.XPSource) (int, error) {
	var n int
	err := db.db.QueryRow(`
		SELECT COUNT(*) FROM xp_transactions WHERE date = ? AND source = ?
	`, date, string(source)).Scan(&n)
	return n, err
}

// CountPositiveForEntity counts positive goal-progress/milestone grants for
// one entity on a day. This is the per-goal anti-spam counter — derived,
// never stored.
func (db *DB) CountPositiveForEntity(date, sourceID string) (int, error) {
	var n int
	err := db.db.QueryRow(`
		SELECT COUNT(*) FROM xp_transactions
		WHERE date = ? AND source_id = ? AND amount > 0
		  AND source IN ('goal_progress', 'goal_milestone')
	`, date, sourceID).Scan(&n)
	return n, err
}

// ActivityWindow derives per-day activity signals from the committed
// transaction log for the trailing window ending at endDate, oldest first.
func (db *DB) ActivityWindow(endDate string, days int) ([]domain.ActivityDay, error) {
	end, err := time.Parse(domain.DateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}
	start := end.AddDate(0, 0, -(days - 1))

	rows, err := db.db.Query(`
		SELECT date,
			SUM(CASE WHEN source IN ('habit', 'habit_milestone') AND amount > 0 THEN 1 ELSE 0 END),
			SUM(CASE WHEN source = 'journal' THEN 1 ELSE 0 END),
			SUM(CASE WHEN source IN ('goal_progress', 'goal_milestone', 'goal_completed') AND amount > 0 THEN 1 ELSE 0 END)
		FROM xp_transactions
		WHERE date BETWEEN ? AND ?
		GROUP BY date
	`, start.Format(domain.DateLayout), endDate)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string]domain.ActivityDay, days)
	for rows.Next() {
		var d domain.ActivityDay
		var habits, goals int
		if err := rows.Scan(&d.Date, &habits, &d.JournalEntries, &goals); err != nil {
			return nil, err
		}
		d.HabitDone = habits > 0
		d.GoalProgress = goals > 0
		byDate[d.Date] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.ActivityDay, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(domain.DateLayout)
		if d, ok := byDate[date]; ok {
			out = append(out, d)
		} else {
			out = append(out, domain.ActivityDay{Date: date})
		}
	}
	return out, nil
}

// ─── Multipliers ────────────────────────────────────────────────────────────

// ActiveMultiplier returns the current multiplier, treating an expired row
// as absent. Expiry is lazy — the row is flipped inactive on first read
// past its deadline, never by a timer.
func (db *DB) ActiveMultiplier(now time.Time) (*domain.ActiveMultiplier, error) {
	var m domain.ActiveMultiplier
	var activatedStr, expiresStr string
	err := db.db.QueryRow(`
		SELECT id, source, multiplier, activated_at, expires_at, note
		FROM xp_multipliers WHERE is_active = 1
		ORDER BY activated_at DESC LIMIT 1
	`).Scan(&m.ID, (*string)(&m.Source), &m.Factor, &activatedStr, &expiresStr, &m.Note)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read multiplier: %w", err)
	}
	m.ActivatedAt, _ = time.Parse(time.RFC3339Nano, activatedStr)
	m.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresStr)

	if m.ExpiredAt(now) {
		_, _ = db.db.Exec(`UPDATE xp_multipliers SET is_active = 0 WHERE id = ?`, m.ID)
		return nil, nil
	}
	return &m, nil
}

// InsertMultiplier stores a newly activated multiplier, retiring any stale
// active rows in the same commit.
func (db *DB) InsertMultiplier(m domain.ActiveMultiplier) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE xp_multipliers SET is_active = 0 WHERE is_active = 1`); err != nil {
		return fmt.Errorf("retire multipliers: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO xp_multipliers (id, source, multiplier, activated_at, expires_at, is_active, note)
		VALUES (?, ?, ?, ?, ?, 1, ?)
	`, m.ID, string(m.Source), m.Factor,
		m.ActivatedAt.Format(time.RFC3339Nano), m.ExpiresAt.Format(time.RFC3339Nano), m.Note)
	if err != nil {
		return fmt.Errorf("insert multiplier: %w", err)
	}
	return tx.Commit()
}

// LastActivation returns the most recent activation time for a multiplier
// source, active or not. Zero time when the source never activated.
func (db *DB) LastActivation(source domain.MultiplierSource) (time.Time, error) {
	var activatedStr string
	err := db.db.QueryRow(`
		SELECT activated_at FROM xp_multipliers WHERE source = ?
		ORDER BY activated_at DESC LIMIT 1
	`, string(source)).Scan(&activatedStr)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read last activation: %w", err)
	}
	t, _ := time.Parse(time.RFC3339Nano, activatedStr)
	return t, nil
}

// ─── Monthly Streaks ────────────────────────────────────────────────────────

// MonthlyStreak returns a category's streak record, or (nil, nil) when the
// category has never completed a challenge.
func (db *DB) MonthlyStreak(category string) (*domain.MonthlyStreakData, error) {
	var d domain.MonthlyStreakData
	var historyJSON string
	err := db.db.QueryRow(`
		SELECT category, current_streak, longest_streak, total_completed, history_json
		FROM monthly_streaks WHERE category = ?
	`, category).Scan(&d.Category, &d.CurrentStreak, &d.LongestStreak, &d.TotalCompleted, &historyJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read monthly streak: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &d.History); err != nil {
		return nil, fmt.Errorf("decode streak history: %w", err)
	}
	return &d, nil
}

// UpsertMonthlyStreak saves a category's streak record.
func (db *DB) UpsertMonthlyStreak(d domain.MonthlyStreakData) error {
	historyJSON, err := json.Marshal(d.History)
	if err != nil {
		return fmt.Errorf("encode streak history: %w", err)
	}
	_, err = db.db.Exec(`
		INSERT INTO monthly_streaks (category, current_streak, longest_streak, total_completed, history_json, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(category) DO UPDATE SET
			current_streak  = excluded.current_streak,
			longest_streak  = excluded.longest_streak,
			total_completed = excluded.total_completed,
			history_json    = excluded.history_json,
			updated_at      = datetime('now')
	`, d.Category, d.CurrentStreak, d.LongestStreak, d.TotalCompleted, string(historyJSON))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
