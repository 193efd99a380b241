package scoring

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lukman83/adscout/internal/models"
)

// WinningTable is an ordered winning curve, strictly increasing in both
// age and reach.
type WinningTable struct {
	tiers []models.WinningTier
}

func NewWinningTable(tiers []models.WinningTier) (*WinningTable, error) {
	if len(tiers) == 0 {
		return nil, errors.New("winning table is empty")
	}
	for i, t := range tiers {
		if t.MinAgeDays < 0 || t.MinReach < 0 {
			return nil, fmt.Errorf("tier %d has negative bounds", i)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if t.MinAgeDays <= prev.MinAgeDays || t.MinReach <= prev.MinReach {
			return nil, fmt.Errorf("tier %s not strictly above %s", t.Label(), prev.Label())
		}
	}
	out := make([]models.WinningTier, len(tiers))
	copy(out, tiers)
	return &WinningTable{tiers: out}, nil
}

func MustWinningTable(tiers []models.WinningTier) *WinningTable {
	t, err := NewWinningTable(tiers)
	if err != nil {
		panic("scoring: " + err.Error())
	}
	return t
}

// DefaultWinning is the production winning curve.
var DefaultWinning = MustWinningTable([]models.WinningTier{
	{MinAgeDays: 4, MinReach: 15000},
	{MinAgeDays: 5, MinReach: 20000},
	{MinAgeDays: 6, MinReach: 30000},
	{MinAgeDays: 7, MinReach: 40000},
	{MinAgeDays: 8, MinReach: 50000},
	{MinAgeDays: 15, MinReach: 100000},
	{MinAgeDays: 22, MinReach: 200000},
	{MinAgeDays: 29, MinReach: 400000},
})

func (t *WinningTable) Tiers() []models.WinningTier {
	out := make([]models.WinningTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Evaluate reports whether an ad of the given age and reach is winning and,
// if so, the highest-age tier it satisfies. A nil reach is never winning,
// and ages below the first tier never qualify.
func (t *WinningTable) Evaluate(ageDays int, reach *int64) (models.WinningTier, bool) {
	if reach == nil {
		return models.WinningTier{}, false
	}
	for i := len(t.tiers) - 1; i >= 0; i-- {
		tier := t.tiers[i]
		if tier.MinAgeDays > ageDays {
			continue
		}
		if *reach >= tier.MinReach {
			return tier, true
		}
	}
	return models.WinningTier{}, false
}

// IsWinning evaluates against the default curve.
func IsWinning(ageDays int, reach *int64) (models.WinningTier, bool) {
	return DefaultWinning.Evaluate(ageDays, reach)
}

// Explain returns a short human-readable verdict for an ad.
func (t *WinningTable) Explain(ageDays int, reach *int64) string {
	if reach == nil {
		return "no reach reported"
	}
	if ageDays < t.tiers[0].MinAgeDays {
		return fmt.Sprintf("too recent: %d days, needs at least %d", ageDays, t.tiers[0].MinAgeDays)
	}
	if tier, ok := t.Evaluate(ageDays, reach); ok {
		return fmt.Sprintf("winning at %s", tier.Label())
	}
	// the cheapest qualifying tier is the first one
	gap := t.tiers[0].MinReach - *reach
	return fmt.Sprintf("not winning: %d reach short of %s", gap, t.tiers[0].Label())
}

// Detection is the outcome of scanning a batch of ads.
type Detection struct {
	Winning []models.WinningAd `json:"winning"`
	ByTier  map[string]int     `json:"by_tier"`
	Scanned int                `json:"scanned"`
}

// DetectAll evaluates every ad against the table using ref as "now".
// Winning ads are sorted by reach, highest first.
func (t *WinningTable) DetectAll(ads []models.Ad, ref time.Time) Detection {
	d := Detection{ByTier: make(map[string]int), Scanned: len(ads)}
	for _, ad := range ads {
		age := ad.AgeDays(ref)
		if age < 0 {
			continue
		}
		tier, ok := t.Evaluate(age, ad.Reach)
		if !ok {
			continue
		}
		d.Winning = append(d.Winning, models.WinningAd{
			Ad:         ad,
			Tier:       tier,
			AgeDays:    age,
			Reach:      *ad.Reach,
			DetectedAt: ref,
		})
		d.ByTier[tier.Label()]++
	}
	sort.SliceStable(d.Winning, func(i, j int) bool {
		return d.Winning[i].Reach > d.Winning[j].Reach
	})
	return d
}

func DetectAll(ads []models.Ad, ref time.Time) Detection {
	return DefaultWinning.DetectAll(ads, ref)
}
