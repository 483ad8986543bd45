package domain

import (
	"testing"
	"time"
)

func TestXPSource_Category(t *testing.T) {
	tests := []struct {
		source XPSource
		want   string
	}{
		{SourceHabit, "habit"},
		{SourceHabitMilestone, "habit"},
		{SourceJournal, "journal"},
		{SourceGoalProgress, "goal"},
		{SourceGoalMilestone, "goal"},
		{SourceGoalCompleted, "goal"},
		{SourceAchievement, "achievement"},
		{SourceChallenge, "achievement"},
		{SourceMultiplierBonus, "achievement"},
	}

	for _, tt := range tests {
		if got := tt.source.Category(); got != tt.want {
			t.Errorf("%s.Category() = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestXPSource_IsMilestone(t *testing.T) {
	milestones := []XPSource{
		SourceHabitMilestone, SourceGoalMilestone, SourceGoalCompleted,
		SourceAchievement, SourceChallenge, SourceMultiplierBonus,
	}
	for _, s := range milestones {
		if !s.IsMilestone() {
			t.Errorf("%s should be a milestone source", s)
		}
		if !s.BypassesBatching() {
			t.Errorf("%s should bypass batching", s)
		}
	}

	regular := []XPSource{SourceHabit, SourceJournal, SourceGoalProgress}
	for _, s := range regular {
		if s.IsMilestone() {
			t.Errorf("%s should not be a milestone source", s)
		}
	}
}

func TestXPSource_CountsTowardGoalSpam(t *testing.T) {
	if !SourceGoalProgress.CountsTowardGoalSpam() {
		t.Error("goal_progress should count toward goal spam")
	}
	if !SourceGoalMilestone.CountsTowardGoalSpam() {
		t.Error("goal_milestone should count toward goal spam")
	}
	if SourceGoalCompleted.CountsTowardGoalSpam() {
		t.Error("goal_completed should not count toward goal spam")
	}
	if SourceHabit.CountsTowardGoalSpam() {
		t.Error("habit should not count toward goal spam")
	}
}

func TestDailyXPSummary_CategoryTotal(t *testing.T) {
	s := DailyXPSummary{HabitXP: 100, JournalXP: 30, GoalXP: 75, AchievementXP: 200}

	tests := []struct {
		category string
		want     int64
	}{
		{"habit", 100},
		{"journal", 30},
		{"goal", 75},
		{"achievement", 200},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := s.CategoryTotal(tt.category); got != tt.want {
			t.Errorf("CategoryTotal(%q) = %d, want %d", tt.category, got, tt.want)
		}
	}
}

func TestActiveMultiplier_ExpiredAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := ActiveMultiplier{ExpiresAt: now.Add(time.Hour)}

	if m.ExpiredAt(now) {
		t.Error("should not be expired before deadline")
	}
	if !m.ExpiredAt(now.Add(time.Hour)) {
		t.Error("should be expired exactly at deadline")
	}
	if !m.ExpiredAt(now.Add(2 * time.Hour)) {
		t.Error("should be expired past deadline")
	}
}

func TestActivityDay_Harmonious(t *testing.T) {
	tests := []struct {
		name string
		day  ActivityDay
		want bool
	}{
		{"all three active", ActivityDay{HabitDone: true, JournalEntries: 3, GoalProgress: true}, true},
		{"journal below threshold", ActivityDay{HabitDone: true, JournalEntries: 2, GoalProgress: true}, false},
		{"no habit", ActivityDay{JournalEntries: 5, GoalProgress: true}, false},
		{"no goal", ActivityDay{HabitDone: true, JournalEntries: 5}, false},
		{"empty day", ActivityDay{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.day.Harmonious(); got != tt.want {
				t.Errorf("Harmonious() = %v, want %v", got, tt.want)
			}
		})
	}
}
