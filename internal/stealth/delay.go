package stealth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// DelayProfile defines a named delay configuration.
type DelayProfile string

const (
	ProfileCautious   DelayProfile = "cautious"
	ProfileNormal     DelayProfile = "normal"
	ProfileAggressive DelayProfile = "aggressive"
	ProfileOff        DelayProfile = "off"
)

// ParseDelayProfile validates a profile name. An empty name is normal.
func ParseDelayProfile(s string) (DelayProfile, error) {
	switch p := DelayProfile(s); p {
	case "":
		return ProfileNormal, nil
	case ProfileCautious, ProfileNormal, ProfileAggressive, ProfileOff:
		return p, nil
	default:
		return "", fmt.Errorf("unknown delay profile %q (want cautious, normal, aggressive or off)", s)
	}
}

// HumanDelay adds randomized jitter between requests to the same sites.
type HumanDelay struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// NewHumanDelay creates a delay generator for the given profile. The off
// profile returns nil, which callers treat as no delay.
func NewHumanDelay(profile DelayProfile) *HumanDelay {
	switch profile {
	case ProfileOff:
		return nil
	case ProfileCautious:
		return &HumanDelay{MinDelay: 2 * time.Second, MaxDelay: 5 * time.Second}
	case ProfileAggressive:
		return &HumanDelay{MinDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond}
	default:
		return &HumanDelay{MinDelay: 300 * time.Millisecond, MaxDelay: 1200 * time.Millisecond}
	}
}

// Wait sleeps for a random duration within the configured range, or for
// floor when that is longer (a robots.txt crawl-delay, for instance).
func (h *HumanDelay) Wait(ctx context.Context, floor time.Duration) error {
	d := floor
	if h != nil {
		d = max(h.Next(), floor)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns a random delay in [MinDelay, MaxDelay).
func (h *HumanDelay) Next() time.Duration {
	if h.MinDelay >= h.MaxDelay {
		return h.MinDelay
	}
	return h.MinDelay + time.Duration(rand.Int64N(int64(h.MaxDelay-h.MinDelay)))
}
