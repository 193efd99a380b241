package scoring_test

import (
	"testing"
	"time"

	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reach(n int64) *int64 { return &n }

func TestIsWinning_Examples(t *testing.T) {
	testCases := []struct {
		name     string
		age      int
		reach    *int64
		winning  bool
		wantTier string
	}{
		{"first tier exact", 4, reach(15000), true, "4d/15k"},
		{"first tier one short", 4, reach(14999), false, ""},
		{"last tier exact", 29, reach(400000), true, "29d/400k"},
		{"below age floor", 3, reach(1000000), false, ""},
		{"nil reach", 30, nil, false, ""},
		{"old ad with low reach keeps early tier", 29, reach(16000), true, "4d/15k"},
		{"highest satisfied tier reported", 10, reach(60000), true, "8d/50k"},
		{"between tiers", 14, reach(99999), true, "8d/50k"},
		{"age 15 with tier reach", 15, reach(100000), true, "15d/100k"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tier, ok := scoring.IsWinning(tc.age, tc.reach)
			assert.Equal(t, tc.winning, ok)
			if tc.winning {
				assert.Equal(t, tc.wantTier, tier.Label())
			}
		})
	}
}

func TestIsWinning_Monotonic(t *testing.T) {
	reaches := []int64{0, 14999, 15000, 19999, 20000, 45000, 50000, 150000, 250000, 400000, 900000}

	for age := 0; age <= 40; age++ {
		was := false
		for _, r := range reaches {
			_, ok := scoring.IsWinning(age, reach(r))
			if was {
				assert.True(t, ok, "age=%d reach=%d flipped to not winning", age, r)
			}
			was = ok
		}
	}

	for _, r := range reaches {
		was := false
		for age := 0; age <= 40; age++ {
			_, ok := scoring.IsWinning(age, reach(r))
			if was {
				assert.True(t, ok, "reach=%d age=%d flipped to not winning", r, age)
			}
			was = ok
		}
	}
}

func TestNewWinningTable_RejectsNonIncreasing(t *testing.T) {
	_, err := scoring.NewWinningTable([]models.WinningTier{
		{MinAgeDays: 4, MinReach: 15000},
		{MinAgeDays: 5, MinReach: 15000},
	})
	assert.Error(t, err)

	_, err = scoring.NewWinningTable([]models.WinningTier{
		{MinAgeDays: 4, MinReach: 15000},
		{MinAgeDays: 4, MinReach: 20000},
	})
	assert.Error(t, err)

	_, err = scoring.NewWinningTable(nil)
	assert.Error(t, err)

	assert.Panics(t, func() {
		scoring.MustWinningTable([]models.WinningTier{{MinAgeDays: 5, MinReach: 10}, {MinAgeDays: 4, MinReach: 20}})
	})
}

func TestExplain(t *testing.T) {
	assert.Equal(t, "no reach reported", scoring.DefaultWinning.Explain(10, nil))
	assert.Contains(t, scoring.DefaultWinning.Explain(2, reach(1)), "too recent")
	assert.Equal(t, "winning at 5d/20k", scoring.DefaultWinning.Explain(5, reach(25000)))
	assert.Equal(t, "not winning: 5000 reach short of 4d/15k", scoring.DefaultWinning.Explain(9, reach(10000)))
}

func TestDetectAll(t *testing.T) {
	ref := time.Date(2025, 3, 30, 12, 0, 0, 0, time.UTC)
	ads := []models.Ad{
		{ID: "1", CreatedAt: ref.AddDate(0, 0, -10), Reach: reach(60000)},
		{ID: "2", CreatedAt: ref.AddDate(0, 0, -2), Reach: reach(900000)},
		{ID: "3", CreatedAt: ref.AddDate(0, 0, -30), Reach: reach(500000)},
		{ID: "4", CreatedAt: ref.AddDate(0, 0, -30)},
		{ID: "5", Reach: reach(500000)},
	}

	d := scoring.DetectAll(ads, ref)
	assert.Equal(t, 5, d.Scanned)
	require.Len(t, d.Winning, 2)
	assert.Equal(t, "3", d.Winning[0].Ad.ID)
	assert.Equal(t, "1", d.Winning[1].Ad.ID)
	assert.Equal(t, 30, d.Winning[0].AgeDays)
	assert.Equal(t, map[string]int{"29d/400k": 1, "8d/50k": 1}, d.ByTier)
}
