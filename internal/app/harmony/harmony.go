// Package harmony activates time-boxed XP multipliers from cross-category
// activity patterns: a harmony streak (all three categories active on the
// same day, sustained) or a comeback (returning after days away).
package harmony

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trailhead-app/trailhead/internal/app/engine"
	"github.com/trailhead-app/trailhead/internal/domain"
	"github.com/trailhead-app/trailhead/internal/infra/observability"
	"github.com/trailhead-app/trailhead/internal/infra/schedule"
)

// Config controls streak detection and multiplier activation.
type Config struct {
	// WindowDays is the trailing activity window the streak scan covers.
	WindowDays int

	// StreakThreshold is the harmonious-day streak length that unlocks the
	// harmony multiplier.
	StreakThreshold int

	// HarmonyFactor/HarmonyDuration shape the harmony multiplier window.
	HarmonyFactor   float64
	HarmonyDuration time.Duration

	// ComebackInactiveDays is how many fully inactive days (ending
	// yesterday) qualify a return as a comeback.
	ComebackInactiveDays int
	ComebackFactor       float64
	ComebackDuration     time.Duration

	// ActivationBonus is the flat XP credited when a multiplier activates.
	// It is never scaled by the multiplier it announces.
	ActivationBonus int64

	// Cooldown is the minimum gap between activations of the same source.
	Cooldown time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		WindowDays:      30,
		StreakThreshold: 7,

		HarmonyFactor:   1.5,
		HarmonyDuration: 24 * time.Hour,

		ComebackInactiveDays: 5,
		ComebackFactor:       1.25,
		ComebackDuration:     24 * time.Hour,

		ActivationBonus: 100,
		Cooldown:        72 * time.Hour,
	}
}

// Rejection reasons returned by CanActivate/Activate.
const (
	ReasonAlreadyActive = "multiplier_already_active"
	ReasonNotEligible   = "not_eligible"
	ReasonCoolingDown   = "cooldown_active"
)

// Service runs the activity scan and owns multiplier activation.
type Service struct {
	store    domain.Store
	activity domain.ActivityProvider
	engine   *engine.Engine
	clock    schedule.Clock
	cfg      Config

	// mu serializes activation: the eligibility check and the multiplier
	// insert must be one atomic step, or two concurrent attempts could
	// both pass the at-most-one-active check.
	mu sync.Mutex
}

// New wires the service. activity may be the store itself (ledger-derived
// signals) or a richer collaborator.
func New(store domain.Store, activity domain.ActivityProvider, eng *engine.Engine, clock schedule.Clock, cfg Config) *Service {
	return &Service{store: store, activity: activity, engine: eng, clock: clock, cfg: cfg}
}

// ActivationResult reports an activation attempt.
type ActivationResult struct {
	Activated  bool                     `json:"activated"`
	Reason     string                   `json:"reason,omitempty"`
	Multiplier *domain.ActiveMultiplier `json:"multiplier,omitempty"`
	BonusXP    int64                    `json:"bonus_xp,omitempty"`
}

// ─── Streak Scan ────────────────────────────────────────────────────────────

// Streak scans the trailing activity window and reports the current
// harmonious-day streak. A streak is current if it reaches today or
// yesterday; a day off today does not zero a streak still worth showing.
func (s *Service) Streak() (domain.HarmonyStreak, error) {
	today := s.clock.Now().Format(domain.DateLayout)
	days, err := s.activity.ActivityWindow(today, s.cfg.WindowDays)
	if err != nil {
		return domain.HarmonyStreak{}, fmt.Errorf("activity window: %w", err)
	}

	var streak domain.HarmonyStreak
	run := 0
	for _, d := range days {
		if d.Harmonious() {
			run++
			streak.QualifyingDays++
			if run > streak.LongestDays {
				streak.LongestDays = run
			}
		} else {
			run = 0
		}
	}

	// Current streak counts back from the end, allowing today to be
	// unfinished.
	i := len(days) - 1
	if i >= 0 && !days[i].Harmonious() {
		i--
	}
	for ; i >= 0 && days[i].Harmonious(); i-- {
		streak.CurrentDays++
	}
	return streak, nil
}

// inactiveRun counts fully inactive days ending yesterday.
func (s *Service) inactiveRun() (int, error) {
	yesterday := s.clock.Now().AddDate(0, 0, -1).Format(domain.DateLayout)
	days, err := s.activity.ActivityWindow(yesterday, s.cfg.WindowDays)
	if err != nil {
		return 0, fmt.Errorf("activity window: %w", err)
	}
	run := 0
	for i := len(days) - 1; i >= 0; i-- {
		d := days[i]
		if d.HabitDone || d.JournalEntries > 0 || d.GoalProgress {
			break
		}
		run++
	}
	return run, nil
}

// ─── Activation ─────────────────────────────────────────────────────────────

// CanActivate checks every activation precondition without side effects.
// Returns ("", nil) when activation would succeed.
func (s *Service) CanActivate(source domain.MultiplierSource) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canActivateLocked(source)
}

func (s *Service) canActivateLocked(source domain.MultiplierSource) (string, error) {
	now := s.clock.Now()

	active, err := s.store.ActiveMultiplier(now)
	if err != nil {
		return "", fmt.Errorf("read active multiplier: %w", err)
	}
	if active != nil {
		return ReasonAlreadyActive, nil
	}

	eligible, err := s.eligible(source)
	if err != nil {
		return "", err
	}
	if !eligible {
		return ReasonNotEligible, nil
	}

	last, err := s.store.LastActivation(source)
	if err != nil {
		return "", fmt.Errorf("read last activation: %w", err)
	}
	if !last.IsZero() && now.Sub(last) < s.cfg.Cooldown {
		return ReasonCoolingDown, nil
	}
	return "", nil
}

func (s *Service) eligible(source domain.MultiplierSource) (bool, error) {
	switch source {
	case domain.MultiplierHarmony:
		streak, err := s.Streak()
		if err != nil {
			return false, err
		}
		return streak.CurrentDays >= s.cfg.StreakThreshold, nil
	case domain.MultiplierComeback:
		run, err := s.inactiveRun()
		if err != nil {
			return false, err
		}
		return run >= s.cfg.ComebackInactiveDays, nil
	default:
		return false, fmt.Errorf("%w: multiplier source %q", domain.ErrUnknownSource, source)
	}
}

// Activate opens a multiplier window: persists the multiplier, credits the
// flat activation bonus through the ledger, and announces the event. At
// most one multiplier is active regardless of source; the whole attempt
// runs under the service lock so concurrent attempts cannot both pass the
// precondition checks.
func (s *Service) Activate(source domain.MultiplierSource) (ActivationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reason, err := s.canActivateLocked(source)
	if err != nil {
		return ActivationResult{}, err
	}
	if reason != "" {
		return ActivationResult{Reason: reason}, nil
	}

	now := s.clock.Now()
	factor, duration := s.cfg.HarmonyFactor, s.cfg.HarmonyDuration
	note := "harmony streak reward"
	if source == domain.MultiplierComeback {
		factor, duration = s.cfg.ComebackFactor, s.cfg.ComebackDuration
		note = "welcome back"
	}

	m := domain.ActiveMultiplier{
		ID:          uuid.NewString(),
		Source:      source,
		Factor:      factor,
		ActivatedAt: now,
		ExpiresAt:   now.Add(duration),
		Note:        note,
	}
	if err := s.store.InsertMultiplier(m); err != nil {
		return ActivationResult{}, fmt.Errorf("persist multiplier: %w", err)
	}

	observability.MultiplierActivations.WithLabelValues(string(source)).Inc()
	observability.MultiplierActive.Set(1)

	res := ActivationResult{Activated: true, Multiplier: &m}
	if s.cfg.ActivationBonus > 0 {
		grant := s.engine.GrantXP(engine.GrantRequest{
			Amount:      s.cfg.ActivationBonus,
			Source:      domain.SourceMultiplierBonus,
			SourceID:    m.ID,
			Description: note,
		})
		if grant.Success {
			res.BonusXP = grant.AmountGranted
		} else {
			// The multiplier stands even if the bonus was refused.
			log.Printf("[harmony] activation bonus not granted: %s", grant.Reason)
		}
	}

	s.engine.Hub().Publish(engine.MultiplierActivatedEvent(factor, duration, string(source), now))
	return res, nil
}

// Active returns the current multiplier, or nil.
func (s *Service) Active() (*domain.ActiveMultiplier, error) {
	m, err := s.store.ActiveMultiplier(s.clock.Now())
	if err != nil {
		return nil, err
	}
	if m == nil {
		observability.MultiplierActive.Set(0)
	}
	return m, nil
}
