package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SizeBucket classifies a page by its deduplicated ad count.
// The zero value means the page has no ads and is not bucketed.
type SizeBucket int

const (
	BucketNone SizeBucket = iota
	BucketXS
	BucketS
	BucketM
	BucketL
	BucketXL
	BucketXXL
)

var bucketNames = [...]string{"", "XS", "S", "M", "L", "XL", "XXL"}

func (b SizeBucket) String() string {
	if b < 0 || int(b) >= len(bucketNames) {
		return fmt.Sprintf("SizeBucket(%d)", int(b))
	}
	return bucketNames[b]
}

func (b SizeBucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *SizeBucket) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSizeBucket(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseSizeBucket converts a bucket label back to its value. The empty
// string maps to BucketNone.
func ParseSizeBucket(s string) (SizeBucket, error) {
	for i, name := range bucketNames {
		if name == s {
			return SizeBucket(i), nil
		}
	}
	return BucketNone, fmt.Errorf("unknown size bucket %q", s)
}

// WinningTier is one (age, reach) step of the winning curve.
type WinningTier struct {
	MinAgeDays int   `json:"min_age_days"`
	MinReach   int64 `json:"min_reach"`
}

// Label renders the tier as "4d/15k".
func (t WinningTier) Label() string {
	return fmt.Sprintf("%dd/%dk", t.MinAgeDays, t.MinReach/1000)
}

type WinningAd struct {
	Ad         Ad          `json:"ad"`
	Tier       WinningTier `json:"tier"`
	AgeDays    int         `json:"age_days"`
	Reach      int64       `json:"reach"`
	DetectedAt time.Time   `json:"detected_at"`
}
