// Package store persists search results, winning ads and website analyses.
// Every operation takes an opaque scope (a tenant or user id) and never
// reads or writes rows of another scope.
package store

import (
	"context"
	"errors"

	"github.com/lukman83/adscout/internal/models"
)

var ErrNotFound = errors.New("not found")

// PageFilter narrows ListPages. Zero values mean no constraint.
type PageFilter struct {
	MinAds             int
	Bucket             models.SizeBucket
	FavoritesOnly      bool
	IncludeBlacklisted bool
	Limit              int
}

type PageRepository interface {
	// SavePages upserts pages. Stored flags are preserved, and so are a
	// known website and recounted total when the new record has none.
	SavePages(ctx context.Context, scope string, pages []models.Page) error
	FindPage(ctx context.Context, scope, pageID string) (models.Page, error)
	ListPages(ctx context.Context, scope string, f PageFilter) ([]models.Page, error)
	// SetFlags updates a page's flags, creating a bare page row when the id
	// has not been seen yet so pages can be blacklisted ahead of a search.
	SetFlags(ctx context.Context, scope, pageID string, flags models.PageFlags) error
	ExcludedPageIDs(ctx context.Context, scope string) (map[string]bool, error)
}

type AdRepository interface {
	SaveAds(ctx context.Context, scope string, ads []models.Ad) error
	FindAd(ctx context.Context, scope, adID string) (models.Ad, error)
	AdsForPage(ctx context.Context, scope, pageID string) ([]models.Ad, error)
}

type WinningAdRepository interface {
	SaveWinningAds(ctx context.Context, scope string, ads []models.WinningAd) error
	// ListWinningAds returns winners by reach, highest first.
	ListWinningAds(ctx context.Context, scope string, limit int) ([]models.WinningAd, error)
}

type AnalysisRepository interface {
	// SaveAnalysis appends a record; earlier analyses of the same URL are
	// kept but superseded.
	SaveAnalysis(ctx context.Context, scope string, a models.WebsiteAnalysis) error
	LatestAnalysis(ctx context.Context, scope, url string) (models.WebsiteAnalysis, error)
	// ListAnalyses returns the latest analysis of every URL.
	ListAnalyses(ctx context.Context, scope string) ([]models.WebsiteAnalysis, error)
}

// Store bundles every repository.
type Store interface {
	PageRepository
	AdRepository
	WinningAdRepository
	AnalysisRepository
	Close() error
}

// SaveSearch persists the ads and pages of a search result. A partial
// result only adds pages not stored yet: its ad counts are truncated and
// must not replace complete ones.
func SaveSearch(ctx context.Context, s Store, scope string, r *models.SearchResult) error {
	if err := s.SaveAds(ctx, scope, r.Ads); err != nil {
		return err
	}
	pages := r.Pages
	if r.Partial {
		fresh := make([]models.Page, 0, len(pages))
		for _, p := range pages {
			_, err := s.FindPage(ctx, scope, p.ID)
			switch {
			case errors.Is(err, ErrNotFound):
				fresh = append(fresh, p)
			case err != nil:
				return err
			}
		}
		pages = fresh
	}
	return s.SavePages(ctx, scope, pages)
}

func matchesFilter(p models.Page, f PageFilter) bool {
	switch {
	case p.Flags.Blacklisted && !f.IncludeBlacklisted:
		return false
	case f.FavoritesOnly && !p.Flags.Favorite:
		return false
	case f.Bucket != models.BucketNone && p.Bucket != f.Bucket:
		return false
	case p.AdCount() < f.MinAds:
		return false
	}
	return true
}
