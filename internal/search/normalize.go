package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/models"
	"github.com/mitchellh/mapstructure"
)

// MalformedAdError is returned when a payload lacks a field every ad needs.
type MalformedAdError struct {
	Field string
	AdID  string
}

func (e *MalformedAdError) Error() string {
	if e.AdID != "" {
		return fmt.Sprintf("malformed ad %s: missing %s", e.AdID, e.Field)
	}
	return fmt.Sprintf("malformed ad: missing %s", e.Field)
}

// rawAd mirrors the ads_archive field names.
type rawAd struct {
	ID           string   `json:"id"`
	PageID       string   `json:"page_id"`
	PageName     string   `json:"page_name"`
	CreationTime string   `json:"ad_creation_time"`
	StopTime     string   `json:"ad_delivery_stop_time"`
	Bodies       []string `json:"ad_creative_bodies"`
	LinkCaptions []string `json:"ad_creative_link_captions"`
	LinkTitles   []string `json:"ad_creative_link_titles"`
	SnapshotURL  string   `json:"ad_snapshot_url"`
	Reach        any      `json:"eu_total_reach"`
	Languages    []string `json:"languages"`
	Platforms    []string `json:"publisher_platforms"`
	Currency     string   `json:"currency"`
}

var creationLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
}

// Normalize converts a raw payload into an Ad. The ad id and page id are
// required; everything else is best effort.
func Normalize(raw adsource.RawAd) (models.Ad, error) {
	var r rawAd
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &r,
	})
	if err != nil {
		return models.Ad{}, err
	}
	if err := dec.Decode(map[string]any(raw)); err != nil {
		return models.Ad{}, fmt.Errorf("decode ad payload: %w", err)
	}

	r.ID = strings.TrimSpace(r.ID)
	r.PageID = strings.TrimSpace(r.PageID)
	if r.ID == "" {
		return models.Ad{}, &MalformedAdError{Field: "id"}
	}
	if r.PageID == "" {
		return models.Ad{}, &MalformedAdError{Field: "page_id", AdID: r.ID}
	}

	ad := models.Ad{
		ID:           r.ID,
		PageID:       r.PageID,
		PageName:     strings.TrimSpace(r.PageName),
		Bodies:       compact(r.Bodies),
		LinkTitles:   compact(r.LinkTitles),
		LinkCaptions: compact(r.LinkCaptions),
		SnapshotURL:  r.SnapshotURL,
		CreatedAt:    parseCreation(r.CreationTime),
		Reach:        parseReach(r.Reach),
		Active:       r.StopTime == "",
		Currency:     strings.ToUpper(strings.TrimSpace(r.Currency)),
		Languages:    r.Languages,
		Platforms:    r.Platforms,
	}
	return ad, nil
}

func parseCreation(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range creationLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseReach accepts a plain number or a {lower_bound, upper_bound} range,
// which is reduced to its midpoint.
func parseReach(v any) *int64 {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		lo, okLo := toInt64(x["lower_bound"])
		hi, okHi := toInt64(x["upper_bound"])
		switch {
		case okLo && okHi:
			mid := (lo + hi) / 2
			return &mid
		case okLo:
			return &lo
		case okHi:
			return &hi
		}
		return nil
	default:
		n, ok := toInt64(x)
		if !ok {
			return nil
		}
		return &n
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
