package models

import "time"

// Ad is a normalized ad from the ad library.
type Ad struct {
	ID           string    `json:"id"`
	PageID       string    `json:"page_id"`
	PageName     string    `json:"page_name"`
	Bodies       []string  `json:"bodies,omitempty"`
	LinkTitles   []string  `json:"link_titles,omitempty"`
	LinkCaptions []string  `json:"link_captions,omitempty"`
	SnapshotURL  string    `json:"snapshot_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Reach        *int64    `json:"reach,omitempty"`
	Active       bool      `json:"active"`
	Currency     string    `json:"currency,omitempty"`
	Languages    []string  `json:"languages,omitempty"`
	Platforms    []string  `json:"platforms,omitempty"`
	Keywords     []string  `json:"keywords"`
}

// Same reports whether a and b identify the same ad.
func (a Ad) Same(b Ad) bool { return a.ID == b.ID }

// AgeDays returns the number of whole days between creation and ref, or -1
// when the creation date is unknown.
func (a Ad) AgeDays(ref time.Time) int {
	if a.CreatedAt.IsZero() {
		return -1
	}
	d := ref.Sub(a.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// HasKeyword reports whether kw found this ad.
func (a Ad) HasKeyword(kw string) bool {
	for _, k := range a.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}

// PageFlags are the user-owned markers stored alongside a page.
type PageFlags struct {
	Favorite    bool `json:"favorite"`
	Blacklisted bool `json:"blacklisted"`
}

type Page struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	WebsiteURL string     `json:"website_url,omitempty"`
	AdIDs      []string   `json:"ad_ids"`
	Bucket     SizeBucket `json:"bucket"`
	Keywords   []string   `json:"keywords,omitempty"`
	Currency   string     `json:"currency,omitempty"`
	Flags      PageFlags  `json:"flags"`
	// ActiveAds is the page's complete active ad count from a per-page
	// recount, nil until recounted.
	ActiveAds *int `json:"active_ads,omitempty"`
}

// AdCount is the number of keyword-matched ads.
func (p Page) AdCount() int { return len(p.AdIDs) }

// TotalAds prefers the recounted total over the keyword-matched count.
func (p Page) TotalAds() int {
	if p.ActiveAds != nil {
		return *p.ActiveAds
	}
	return p.AdCount()
}

type SearchResult struct {
	ID                string         `json:"id"`
	Keywords          []string       `json:"keywords"`
	Pages             []Page         `json:"pages"`
	Ads               []Ad           `json:"ads"`
	TotalAds          int            `json:"total_ads"`
	UniqueAds         int            `json:"unique_ads"`
	PageCount         int            `json:"page_count"`
	PagesBeforeFilter int            `json:"pages_before_filter"`
	KeywordStats      map[string]int `json:"keyword_stats"`
	Rejected          int            `json:"rejected"`
	FailedQueries     int            `json:"failed_queries"`
	Partial           bool           `json:"partial,omitempty"`
	Duration          time.Duration  `json:"duration"`
	SearchedAt        time.Time      `json:"searched_at"`
}

// PageAds returns the ads of the given page present in the result.
func (r *SearchResult) PageAds(pageID string) []Ad {
	var out []Ad
	for _, a := range r.Ads {
		if a.PageID == pageID {
			out = append(out, a)
		}
	}
	return out
}
