// Package pipeline chains the search, scoring and website analysis stages
// and persists what they produce. The CLI and the MCP tools both drive it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/progress"
	"github.com/lukman83/adscout/internal/scoring"
	"github.com/lukman83/adscout/internal/search"
	"github.com/lukman83/adscout/internal/store"
	"github.com/lukman83/adscout/internal/website"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultExportMinAds is the ad count from which a page's website is analyzed.
	DefaultExportMinAds = 15
	// DefaultRecountConcurrency bounds concurrent per-page recount queries.
	DefaultRecountConcurrency = 3
)

type Runner struct {
	Aggregator *search.Aggregator
	Analyzer   *website.Analyzer
	Store      store.Store
	Winning    *scoring.WinningTable
	Log        *log.Logger
	Scope      string
	Countries  []string
	Languages  []string
	Now        func() time.Time

	// RecountConcurrency defaults to DefaultRecountConcurrency.
	RecountConcurrency int
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *log.Logger {
	if r.Log != nil {
		return r.Log
	}
	return log.Default()
}

// Search runs a keyword search that skips blacklisted pages and stores the
// result.
func (r *Runner) Search(ctx context.Context, keywords []string, minAds int) (*models.SearchResult, error) {
	excluded, err := r.Store.ExcludedPageIDs(ctx, r.Scope)
	if err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}

	res, err := r.Aggregator.Search(ctx, search.Request{
		Keywords:        keywords,
		Countries:       r.Countries,
		Languages:       r.Languages,
		MinAds:          minAds,
		ExcludedPageIDs: excluded,
	})
	if err != nil {
		return nil, err
	}

	// a cancelled caller still gets the partial result; saving uses a fresh context
	if err := store.SaveSearch(context.WithoutCancel(ctx), r.Store, r.Scope, res); err != nil {
		return res, fmt.Errorf("save search: %w", err)
	}
	return res, nil
}

// DetectWinning flags the winning ads among ads and stores them.
func (r *Runner) DetectWinning(ctx context.Context, ads []models.Ad) (scoring.Detection, error) {
	table := r.Winning
	if table == nil {
		table = scoring.DefaultWinning
	}
	d := table.DetectAll(ads, r.now())
	if len(d.Winning) == 0 {
		return d, nil
	}
	if err := r.Store.SaveWinningAds(context.WithoutCancel(ctx), r.Scope, d.Winning); err != nil {
		return d, fmt.Errorf("save winning ads: %w", err)
	}
	r.logger().Info("winning ads detected", "scanned", d.Scanned, "winning", len(d.Winning))
	return d, nil
}

// Analyze analyzes a batch of websites and stores every finished record,
// failed ones included. Sites cut off by cancellation are returned but not
// stored, so they never supersede an earlier analysis.
func (r *Runner) Analyze(ctx context.Context, urls []string, maxConcurrent int) ([]models.WebsiteAnalysis, error) {
	analyses, err := r.Analyzer.AnalyzeBatch(ctx, urls, maxConcurrent)
	if err != nil {
		return nil, err
	}
	saveCtx := context.WithoutCancel(ctx)
	for _, a := range analyses {
		if a.Cancelled {
			continue
		}
		if err := r.Store.SaveAnalysis(saveCtx, r.Scope, a); err != nil {
			return analyses, fmt.Errorf("save analysis of %s: %w", a.URL, err)
		}
	}
	return analyses, nil
}

// RecountResult is the outcome of RecountPages.
type RecountResult struct {
	// Pages has one entry per input page, in input order. Recounted pages
	// carry ActiveAds, a bucket from that total and the dominant currency
	// of all their ads; the others are unchanged.
	Pages     []models.Page `json:"pages"`
	Recounted int           `json:"recounted"`
	Failed    int           `json:"failed"`
}

// RecountPages queries every active ad of each page by page id, whatever
// keyword it matches, and stores the complete totals. A page whose recount
// fails keeps its keyword-matched count. Pages not reached before
// cancellation are left unchanged and are not counted as failed.
func (r *Runner) RecountPages(ctx context.Context, pages []models.Page) (*RecountResult, error) {
	out := &RecountResult{Pages: slices.Clone(pages)}
	done := make([]bool, len(pages))
	failed := make([]bool, len(pages))
	var finished atomic.Int32

	limit := r.RecountConcurrency
	if limit <= 0 {
		limit = DefaultRecountConcurrency
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i := range out.Pages {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			p := &out.Pages[i]
			ads, err := r.Aggregator.PageAds(ctx, p.ID, r.Countries, r.Languages)
			if err != nil {
				if ctx.Err() == nil {
					failed[i] = true
					r.logger().Warn("page recount failed", "page", p.ID, "err", err)
				}
				return nil
			}
			total := len(ads)
			p.ActiveAds = &total
			p.Bucket = scoring.BucketFor(total)
			if c := search.DominantCurrency(ads); c != "" {
				p.Currency = c
			}
			done[i] = true
			progress.Report(ctx, fmt.Sprintf("recounted %d/%d pages", finished.Add(1), len(pages)))
			return nil
		})
	}
	_ = g.Wait()

	var recounted []models.Page
	for i, p := range out.Pages {
		switch {
		case done[i]:
			recounted = append(recounted, p)
		case failed[i]:
			out.Failed++
		}
	}
	out.Recounted = len(recounted)
	r.logger().Info("pages recounted", "pages", len(pages), "recounted", out.Recounted, "failed", out.Failed)

	if len(recounted) == 0 {
		return out, nil
	}
	if err := r.Store.SavePages(context.WithoutCancel(ctx), r.Scope, recounted); err != nil {
		return out, fmt.Errorf("save recounted pages: %w", err)
	}
	return out, nil
}

// RecountStored recounts stored pages by id; ids never stored get a bare
// page. With no ids, every stored non-blacklisted page with a website is
// recounted.
func (r *Runner) RecountStored(ctx context.Context, pageIDs []string) (*RecountResult, error) {
	var pages []models.Page
	if len(pageIDs) == 0 {
		all, err := r.Store.ListPages(ctx, r.Scope, store.PageFilter{})
		if err != nil {
			return nil, err
		}
		for _, p := range all {
			if p.WebsiteURL != "" {
				pages = append(pages, p)
			}
		}
	}
	for _, id := range pageIDs {
		p, err := r.Store.FindPage(ctx, r.Scope, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			p = models.Page{ID: id}
		case err != nil:
			return nil, err
		}
		pages = append(pages, p)
	}
	return r.RecountPages(ctx, pages)
}

// ScoutRequest configures a full search → score → analyze run.
type ScoutRequest struct {
	Keywords      []string
	MinAds        int
	ExportMinAds  int
	MaxConcurrent int
	// SkipRecount applies ExportMinAds to keyword-matched counts instead of
	// complete per-page totals.
	SkipRecount bool
}

type ScoutReport struct {
	Search   *models.SearchResult     `json:"search"`
	Winning  scoring.Detection        `json:"winning"`
	Sites    []string                 `json:"sites"`
	Analyses []models.WebsiteAnalysis `json:"analyses"`
	// NoWebsite counts pages above the export threshold without a website.
	NoWebsite     int `json:"no_website"`
	Recounted     int `json:"recounted"`
	RecountFailed int `json:"recount_failed"`
}

// Scout searches, flags winning ads, recounts the complete ad total of
// pages with a website, then analyzes the websites of pages with at least
// ExportMinAds ads.
func (r *Runner) Scout(ctx context.Context, req ScoutRequest) (*ScoutReport, error) {
	if req.ExportMinAds <= 0 {
		req.ExportMinAds = DefaultExportMinAds
	}
	if req.MaxConcurrent < 1 || req.MaxConcurrent > website.MaxConcurrentLimit {
		return nil, fmt.Errorf("%w: %d", website.ErrInvalidConcurrency, req.MaxConcurrent)
	}

	res, err := r.Search(ctx, req.Keywords, req.MinAds)
	if err != nil {
		return nil, err
	}
	report := &ScoutReport{Search: res}

	report.Winning, err = r.DetectWinning(ctx, res.Ads)
	if err != nil {
		return report, err
	}

	if !req.SkipRecount {
		if err := r.recountCandidates(ctx, report); err != nil {
			return report, err
		}
	}

	report.Sites, report.NoWebsite = Sites(res.Pages, req.ExportMinAds)
	if len(report.Sites) == 0 || ctx.Err() != nil {
		return report, nil
	}

	progress.Report(ctx, fmt.Sprintf("analyzing %d websites", len(report.Sites)))
	report.Analyses, err = r.Analyze(ctx, report.Sites, req.MaxConcurrent)
	return report, err
}

// recountCandidates recounts the pages of the report's search that have a
// website, in place. Pages without one cannot be analyzed anyway.
func (r *Runner) recountCandidates(ctx context.Context, report *ScoutReport) error {
	var idx []int
	var candidates []models.Page
	for i, p := range report.Search.Pages {
		if p.WebsiteURL != "" {
			idx = append(idx, i)
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 || ctx.Err() != nil {
		return nil
	}

	progress.Report(ctx, fmt.Sprintf("recounting %d pages", len(candidates)))
	rc, err := r.RecountPages(ctx, candidates)
	for j, i := range idx {
		report.Search.Pages[i] = rc.Pages[j]
	}
	report.Recounted, report.RecountFailed = rc.Recounted, rc.Failed
	return err
}

// Sites returns the distinct websites of pages with at least minAds ads, in
// page order, and how many of those pages have no website. Recounted totals
// take precedence over keyword-matched counts.
func Sites(pages []models.Page, minAds int) ([]string, int) {
	var sites []string
	seen := map[string]bool{}
	missing := 0
	for _, p := range pages {
		if p.TotalAds() < minAds {
			continue
		}
		if p.WebsiteURL == "" {
			missing++
			continue
		}
		key := website.Origin(p.WebsiteURL)
		if key == "" {
			key = p.WebsiteURL
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		sites = append(sites, p.WebsiteURL)
	}
	return sites, missing
}
