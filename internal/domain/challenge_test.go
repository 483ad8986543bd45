package domain

import "testing"

func TestBaseRewardForStars(t *testing.T) {
	tests := []struct {
		stars int
		want  int64
	}{
		{1, 500},
		{2, 750},
		{3, 1125},
		{4, 1556},
		{5, 2532},
		{0, 500},  // clamps up
		{9, 2532}, // clamps down
	}

	for _, tt := range tests {
		if got := BaseRewardForStars(tt.stars); got != tt.want {
			t.Errorf("BaseRewardForStars(%d) = %d, want %d", tt.stars, got, tt.want)
		}
	}
}

func TestTierForRatio(t *testing.T) {
	tests := []struct {
		ratio float64
		want  RewardTier
	}{
		{1.0, TierStandard},
		{1.19, TierStandard},
		{1.2, TierExcellent},
		{1.4, TierPerfect},
		{1.6, TierLegendary},
		{1.8, TierLegendary},
	}

	for _, tt := range tests {
		if got := TierForRatio(tt.ratio); got != tt.want {
			t.Errorf("TierForRatio(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}
