package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/lukman83/adscout/internal/models"
)

// BucketRange is the inclusive ad-count range of one size bucket.
// Max is math.MaxInt for the open-ended last bucket.
type BucketRange struct {
	Bucket models.SizeBucket
	Min    int
	Max    int
}

// BucketTable maps ad counts to size buckets. Ranges are contiguous,
// start at 1 and are ordered by Min.
type BucketTable struct {
	ranges []BucketRange
}

// BucketMin pairs a bucket with the smallest ad count it accepts.
type BucketMin struct {
	Bucket models.SizeBucket
	Min    int
}

// NewBucketTable builds a table from bucket lower bounds. Each range ends one
// below the next bucket's minimum; the last one is open-ended.
func NewBucketTable(mins []BucketMin) (*BucketTable, error) {
	if len(mins) == 0 {
		return nil, errors.New("bucket table is empty")
	}
	if mins[0].Min != 1 {
		return nil, fmt.Errorf("first bucket must start at 1, got %d", mins[0].Min)
	}
	t := &BucketTable{ranges: make([]BucketRange, len(mins))}
	for i, m := range mins {
		if m.Bucket == models.BucketNone {
			return nil, fmt.Errorf("entry %d uses the unbucketed state", i)
		}
		if i > 0 {
			prev := mins[i-1]
			if m.Min <= prev.Min {
				return nil, fmt.Errorf("bucket %s min %d not above %s min %d", m.Bucket, m.Min, prev.Bucket, prev.Min)
			}
			if m.Bucket <= prev.Bucket {
				return nil, fmt.Errorf("bucket %s out of order after %s", m.Bucket, prev.Bucket)
			}
			t.ranges[i-1].Max = m.Min - 1
		}
		t.ranges[i] = BucketRange{Bucket: m.Bucket, Min: m.Min, Max: math.MaxInt}
	}
	return t, nil
}

// MustBucketTable is like NewBucketTable but panics on an invalid table.
func MustBucketTable(mins []BucketMin) *BucketTable {
	t, err := NewBucketTable(mins)
	if err != nil {
		panic("scoring: " + err.Error())
	}
	return t
}

// For returns the bucket for adCount. Zero and negative counts are unbucketed.
func (t *BucketTable) For(adCount int) models.SizeBucket {
	if adCount < 1 {
		return models.BucketNone
	}
	for i := len(t.ranges) - 1; i >= 0; i-- {
		if adCount >= t.ranges[i].Min {
			return t.ranges[i].Bucket
		}
	}
	return models.BucketNone
}

// Range returns the inclusive range for b.
func (t *BucketTable) Range(b models.SizeBucket) (BucketRange, bool) {
	for _, r := range t.ranges {
		if r.Bucket == b {
			return r, true
		}
	}
	return BucketRange{}, false
}

func (t *BucketTable) Ranges() []BucketRange {
	out := make([]BucketRange, len(t.ranges))
	copy(out, t.ranges)
	return out
}

// DefaultBuckets is the production bucket table.
var DefaultBuckets = MustBucketTable([]BucketMin{
	{models.BucketXS, 1},
	{models.BucketS, 10},
	{models.BucketM, 20},
	{models.BucketL, 35},
	{models.BucketXL, 80},
	{models.BucketXXL, 150},
})

// BucketFor classifies adCount with the default table.
func BucketFor(adCount int) models.SizeBucket {
	return DefaultBuckets.For(adCount)
}

// Distribution counts pages per bucket, recomputing buckets from ad counts
// (recounted totals where known).
func Distribution(pages []models.Page) map[models.SizeBucket]int {
	out := make(map[models.SizeBucket]int)
	for _, p := range pages {
		out[BucketFor(p.TotalAds())]++
	}
	return out
}
