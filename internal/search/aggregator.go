package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/progress"
	"github.com/lukman83/adscout/internal/scoring"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoKeywords    = errors.New("at least one keyword is required")
	ErrInvalidMinAds = errors.New("min ads must not be negative")
)

type Request struct {
	Keywords        []string
	Countries       []string
	Languages       []string
	MinAds          int
	ExcludedPageIDs map[string]bool
}

type Options struct {
	// KeywordConcurrency bounds how many keywords are queried at once.
	KeywordConcurrency int
	Now                func() time.Time
}

// Aggregator runs keyword searches against a Source and folds the results
// into deduplicated pages.
type Aggregator struct {
	src  adsource.Source
	log  *log.Logger
	opts Options
}

func NewAggregator(src adsource.Source, logger *log.Logger, opts Options) *Aggregator {
	if opts.KeywordConcurrency <= 0 {
		opts.KeywordConcurrency = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{src: src, log: logger, opts: opts}
}

// harvest is what one keyword's goroutine collects. Each goroutine owns
// exactly one harvest slot.
type harvest struct {
	ads      []models.Ad
	rejected int
	failed   int
}

// Search queries every keyword, then deduplicates ads by id, groups them by
// page and drops excluded or undersized pages. Query failures and malformed
// ads are tallied in the result; a cancelled context yields a partial
// result and no error.
func (a *Aggregator) Search(ctx context.Context, req Request) (*models.SearchResult, error) {
	keywords := cleanKeywords(req.Keywords)
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	if req.MinAds < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMinAds, req.MinAds)
	}

	start := time.Now()
	slots := make([]harvest, len(keywords))

	g := new(errgroup.Group)
	g.SetLimit(a.opts.KeywordConcurrency)
	for i, kw := range keywords {
		g.Go(func() error {
			slots[i] = a.drain(ctx, kw, req)
			return nil
		})
	}
	_ = g.Wait()

	res := a.aggregate(keywords, slots, req)
	res.Duration = time.Since(start)
	res.SearchedAt = a.opts.Now()
	res.Partial = ctx.Err() != nil

	a.log.Info("search complete",
		"keywords", len(keywords),
		"total_ads", res.TotalAds,
		"unique_ads", res.UniqueAds,
		"pages", res.PageCount,
		"rejected", res.Rejected,
		"failed_queries", res.FailedQueries,
		"partial", res.Partial,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res, nil
}

func (a *Aggregator) drain(ctx context.Context, kw string, req Request) harvest {
	var h harvest
	q := adsource.Query{Keyword: kw, Countries: req.Countries, Languages: req.Languages}

	pages := 0
	for page, err := range adsource.Pages(ctx, a.src, q) {
		if err != nil {
			if ctx.Err() != nil {
				a.log.Debug("keyword abandoned", "keyword", kw, "pages", pages)
				break
			}
			h.failed++
			a.log.Warn("query page dropped", "keyword", kw, "page", pages+1, "err", err)
			break
		}
		pages++
		for _, raw := range page.Ads {
			ad, err := Normalize(raw)
			if err != nil {
				h.rejected++
				a.log.Debug("ad rejected", "keyword", kw, "err", err)
				continue
			}
			h.ads = append(h.ads, ad)
		}
		progress.Report(ctx, fmt.Sprintf("%q: %d ads after %d pages", kw, len(h.ads), pages))
	}
	return h
}

// aggregate runs after every keyword has been drained. It is the only place
// the dedup index is written.
func (a *Aggregator) aggregate(keywords []string, slots []harvest, req Request) *models.SearchResult {
	res := &models.SearchResult{
		ID:           uuid.NewString(),
		Keywords:     keywords,
		KeywordStats: make(map[string]int, len(keywords)),
	}

	byID := make(map[string]*models.Ad)
	kwSets := make(map[string]map[string]bool)
	var order []string

	for i, h := range slots {
		kw := keywords[i]
		res.TotalAds += len(h.ads)
		res.Rejected += h.rejected
		res.FailedQueries += h.failed
		for _, ad := range h.ads {
			if _, ok := byID[ad.ID]; !ok {
				ad := ad
				byID[ad.ID] = &ad
				kwSets[ad.ID] = map[string]bool{}
				order = append(order, ad.ID)
			}
			kwSets[ad.ID][kw] = true
		}
	}

	for _, kw := range keywords {
		res.KeywordStats[kw] = 0
	}
	for _, id := range order {
		ad := byID[id]
		ad.Keywords = setToSorted(kwSets[id])
		for _, kw := range ad.Keywords {
			res.KeywordStats[kw]++
		}
	}
	res.UniqueAds = len(order)

	type group struct {
		name string
		ids  []string
	}
	groups := make(map[string]*group)
	var pageOrder []string
	for _, id := range order {
		ad := byID[id]
		g, ok := groups[ad.PageID]
		if !ok {
			g = &group{}
			groups[ad.PageID] = g
			pageOrder = append(pageOrder, ad.PageID)
		}
		if g.name == "" {
			g.name = ad.PageName
		}
		g.ids = append(g.ids, id)
	}
	res.PagesBeforeFilter = len(groups)

	for _, pageID := range pageOrder {
		g := groups[pageID]
		if req.ExcludedPageIDs[pageID] || len(g.ids) < req.MinAds {
			continue
		}

		ads := make([]models.Ad, 0, len(g.ids))
		kws := map[string]bool{}
		for _, id := range g.ids {
			ad := *byID[id]
			ads = append(ads, ad)
			for _, kw := range ad.Keywords {
				kws[kw] = true
			}
		}

		res.Pages = append(res.Pages, models.Page{
			ID:         pageID,
			Name:       g.name,
			WebsiteURL: WebsiteFromAds(ads),
			AdIDs:      g.ids,
			Bucket:     scoring.BucketFor(len(g.ids)),
			Keywords:   setToSorted(kws),
			Currency:   DominantCurrency(ads),
		})
		res.Ads = append(res.Ads, ads...)
	}

	sort.SliceStable(res.Pages, func(i, j int) bool {
		return res.Pages[i].AdCount() > res.Pages[j].AdCount()
	})
	res.PageCount = len(res.Pages)
	return res
}

func cleanKeywords(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
