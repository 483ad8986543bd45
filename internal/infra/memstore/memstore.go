// Package memstore is the best-effort, in-memory ledger backend.
//
// It is an explicitly degraded-durability implementation: Append performs
// its three writes independently (Transactional() == false) and nothing
// survives process exit. It exists for tests and ephemeral runs — the
// SQLite backend is the production store.
package memstore

import (
	"sync"
	"time"

	"github.com/trailhead-app/trailhead/internal/domain"
)

// Store keeps the whole ledger in process memory.
type Store struct {
	mu           sync.Mutex
	transactions []domain.XPTransaction
	state        domain.XPState
	summaries    map[string]*domain.DailyXPSummary
	multipliers  []domain.ActiveMultiplier
	streaks      map[string]domain.MonthlyStreakData
	levelUps     []domain.LevelUpRecord
	closed       bool

	// FailAppends makes the next N Append calls fail after the transaction
	// insert but before the state update, exercising the engine's
	// storage-failure recovery. Test hook only.
	FailAppends int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		state:     domain.XPState{CurrentLevel: 1},
		summaries: make(map[string]*domain.DailyXPSummary),
		streaks:   make(map[string]domain.MonthlyStreakData),
	}
}

// Transactional reports that Append is NOT atomic here.
func (s *Store) Transactional() bool { return false }

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Append performs the three ledger writes independently. A mid-sequence
// failure can leave the log and aggregates out of step — callers relying
// on atomicity must use the SQLite backend.
func (s *Store) Append(txn domain.XPTransaction, state domain.XPState, levelUp *domain.LevelUpRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrLedgerClosed
	}

	s.transactions = append(s.transactions, txn)

	if s.FailAppends > 0 {
		s.FailAppends--
		// leave the orphaned log row behind: this backend is best-effort
		return domain.ErrCommitFailed
	}

	s.applySummary(txn.Date, txn.Source.Category(), txn.Amount, +1)
	s.state = state
	if levelUp != nil {
		s.levelUps = append(s.levelUps, *levelUp)
	}
	return nil
}

// RollbackLast removes the most recent transaction and reverses its effect.
func (s *Store) RollbackLast() (*domain.XPTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrLedgerClosed
	}
	if len(s.transactions) == 0 {
		return nil, domain.ErrNoTransactions
	}

	txn := s.transactions[len(s.transactions)-1]
	s.transactions = s.transactions[:len(s.transactions)-1]
	s.applySummary(txn.Date, txn.Source.Category(), -txn.Amount, -1)

	total := s.state.TotalXP - txn.Amount
	if total < 0 {
		total = 0
	}
	s.state.TotalXP = total
	s.state.CurrentLevel = domain.LevelForXP(total).Level
	return &txn, nil
}

func (s *Store) applySummary(date, category string, amount int64, countDelta int) {
	sum, ok := s.summaries[date]
	if !ok {
		sum = &domain.DailyXPSummary{Date: date}
		s.summaries[date] = sum
	}
	sum.TotalXP += amount
	sum.TransactionCount += countDelta
	switch category {
	case "habit":
		sum.HabitXP += amount
	case "journal":
		sum.JournalXP += amount
	case "goal":
		sum.GoalXP += amount
	default:
		sum.AchievementXP += amount
	}
}

// ─── Read Paths ─────────────────────────────────────────────────────────────

func (s *Store) State() (domain.XPState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *Store) DailySummary(date string) (domain.DailyXPSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sum, ok := s.summaries[date]; ok {
		return *sum, nil
	}
	return domain.DailyXPSummary{Date: date}, nil
}

func (s *Store) CountSourceDay(date string, source domain.XPSource) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.transactions {
		if t.Date == date && t.Source == source {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountPositiveForEntity(date, sourceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.transactions {
		if t.Date == date && t.SourceID == sourceID && t.Amount > 0 && t.Source.CountsTowardGoalSpam() {
			n++
		}
	}
	return n, nil
}

func (s *Store) ActivityWindow(endDate string, days int) ([]domain.ActivityDay, error) {
	end, err := time.Parse(domain.DateLayout, endDate)
	if err != nil {
		return nil, err
	}
	start := end.AddDate(0, 0, -(days - 1))

	s.mu.Lock()
	defer s.mu.Unlock()

	byDate := make(map[string]*domain.ActivityDay, days)
	out := make([]domain.ActivityDay, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(domain.DateLayout)
		out[i] = domain.ActivityDay{Date: date}
		byDate[date] = &out[i]
	}

	for _, t := range s.transactions {
		d, ok := byDate[t.Date]
		if !ok {
			continue
		}
		switch t.Source {
		case domain.SourceHabit, domain.SourceHabitMilestone:
			if t.Amount > 0 {
				d.HabitDone = true
			}
		case domain.SourceJournal:
			d.JournalEntries++
		case domain.SourceGoalProgress, domain.SourceGoalMilestone, domain.SourceGoalCompleted:
			if t.Amount > 0 {
				d.GoalProgress = true
			}
		}
	}
	return out, nil
}

// ─── Multipliers / Streaks ──────────────────────────────────────────────────

func (s *Store) ActiveMultiplier(now time.Time) (*domain.ActiveMultiplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.multipliers) == 0 {
		return nil, nil
	}
	m := s.multipliers[len(s.multipliers)-1]
	if m.ExpiredAt(now) {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) InsertMultiplier(m domain.ActiveMultiplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrLedgerClosed
	}
	s.multipliers = append(s.multipliers, m)
	return nil
}

func (s *Store) LastActivation(source domain.MultiplierSource) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	for _, m := range s.multipliers {
		if m.Source == source && m.ActivatedAt.After(last) {
			last = m.ActivatedAt
		}
	}
	return last, nil
}

func (s *Store) MonthlyStreak(category string) (*domain.MonthlyStreakData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrLedgerClosed
	}
	if d, ok := s.streaks[category]; ok {
		cp := d
		cp.History = append([]domain.MonthRecord(nil), d.History...)
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) UpsertMonthlyStreak(d domain.MonthlyStreakData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrLedgerClosed
	}
	d.History = append([]domain.MonthRecord(nil), d.History...)
	s.streaks[d.Category] = d
	return nil
}

// TransactionCount reports how many rows the log holds. Test helper.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

// LevelUpCount reports how many level-up audit rows were written. Test helper.
func (s *Store) LevelUpCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.levelUps)
}
