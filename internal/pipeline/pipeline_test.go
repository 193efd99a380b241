package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/search"
	"github.com/lukman83/adscout/internal/store"
	"github.com/lukman83/adscout/internal/website"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fetchFunc func(ctx context.Context, rawURL string) website.FetchOutcome

func (f fetchFunc) Probe(ctx context.Context, rawURL string) website.FetchOutcome {
	return f(ctx, rawURL)
}

func rawAd(id, page, caption string, reach int) adsource.RawAd {
	return adsource.RawAd{
		"id":                        id,
		"page_id":                   page,
		"page_name":                 "Page " + page,
		"ad_creation_time":          "2026-02-01",
		"eu_total_reach":            reach,
		"ad_creative_link_captions": []any{caption},
	}
}

type fixture struct {
	runner *pipeline.Runner
	store  *store.Memory
	mu     sync.Mutex
	probed []string
}

func newFixture(src adsource.Source) *fixture {
	f := &fixture{store: store.NewMemory()}
	logger := log.New(io.Discard)
	fetch := fetchFunc(func(_ context.Context, rawURL string) website.FetchOutcome {
		f.mu.Lock()
		f.probed = append(f.probed, rawURL)
		f.mu.Unlock()
		return website.FetchOutcome{
			RequestURL: rawURL,
			FinalURL:   rawURL,
			StatusCode: http.StatusOK,
			Headers:    http.Header{},
			Body:       []byte(`<html><script src="https://cdn.shopify.com/s/files/theme.js"></script><script>Shopify.theme = {"name":"Dawn","id":1};</script></html>`),
		}
	})
	f.runner = &pipeline.Runner{
		Aggregator: search.NewAggregator(src, logger, search.Options{Now: func() time.Time { return now }}),
		Analyzer: website.NewAnalyzer(fetch, nil, nil, logger, website.AnalyzerOptions{
			Retries: -1,
			Now:     func() time.Time { return now },
		}),
		Store: f.store,
		Log:   logger,
		Scope: "u1",
		Now:   func() time.Time { return now },
	}
	return f
}

func TestScout_AnalyzesQualifyingWebsites(t *testing.T) {
	src := adsource.NewMemory(10)
	src.Add("bijoux",
		rawAd("1", "big", "bijoux.fr", 50000),
		rawAd("2", "big", "bijoux.fr", 1000),
		rawAd("3", "big", "bijoux.fr", 1000),
		rawAd("4", "small", "petit.fr", 100),
		rawAd("5", "nosite", "", 100),
		rawAd("6", "nosite", "", 100),
	)
	f := newFixture(src)

	report, err := f.runner.Scout(context.Background(), pipeline.ScoutRequest{
		Keywords:      []string{"bijoux"},
		ExportMinAds:  2,
		MaxConcurrent: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Search.PageCount)
	assert.Equal(t, []string{"https://bijoux.fr"}, report.Sites)
	assert.Equal(t, 1, report.NoWebsite)
	assert.Equal(t, []string{"https://bijoux.fr"}, f.probed)

	require.Len(t, report.Winning.Winning, 1)
	assert.Equal(t, "1", report.Winning.Winning[0].Ad.ID)
	assert.Equal(t, "8d/50k", report.Winning.Winning[0].Tier.Label())

	require.Len(t, report.Analyses, 1)
	assert.True(t, report.Analyses[0].Success)
	assert.Equal(t, "Shopify", report.Analyses[0].Platform)

	ctx := context.Background()
	stored, err := f.store.LatestAnalysis(ctx, "u1", "https://bijoux.fr")
	require.NoError(t, err)
	assert.Equal(t, report.Analyses[0].ID, stored.ID)

	winners, err := f.store.ListWinningAds(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, winners, 1)

	page, err := f.store.FindPage(ctx, "u1", "big")
	require.NoError(t, err)
	assert.Equal(t, 3, page.AdCount())
}

func TestScout_ExportThresholdUsesRecountedTotal(t *testing.T) {
	src := adsource.NewMemory(10)
	src.Add("bijoux",
		rawAd("1", "grand", "grand.fr", 100),
		rawAd("2", "grand", "grand.fr", 100),
		rawAd("3", "local", "local.fr", 100),
	)
	// ads of the page no keyword matched
	for i := range 14 {
		ad := rawAd(fmt.Sprintf("g%d", i), "grand", "grand.fr", 100)
		ad["currency"] = "EUR"
		src.AddToPage(ad)
	}

	t.Run("recounted", func(t *testing.T) {
		f := newFixture(src)
		report, err := f.runner.Scout(context.Background(), pipeline.ScoutRequest{
			Keywords:      []string{"bijoux"},
			MaxConcurrent: 2,
		})
		require.NoError(t, err)

		assert.Equal(t, 2, report.Recounted)
		assert.Zero(t, report.RecountFailed)
		assert.Equal(t, []string{"https://grand.fr"}, report.Sites)

		page, err := f.store.FindPage(context.Background(), "u1", "grand")
		require.NoError(t, err)
		assert.Equal(t, 2, page.AdCount())
		assert.Equal(t, 16, page.TotalAds())
		assert.Equal(t, "EUR", page.Currency)
		assert.Equal(t, models.BucketS, page.Bucket)
	})

	t.Run("keyword counts only", func(t *testing.T) {
		f := newFixture(src)
		report, err := f.runner.Scout(context.Background(), pipeline.ScoutRequest{
			Keywords:      []string{"bijoux"},
			MaxConcurrent: 2,
			SkipRecount:   true,
		})
		require.NoError(t, err)
		assert.Zero(t, report.Recounted)
		assert.Empty(t, report.Sites)
		assert.Empty(t, f.probed)
	})
}

func TestRecountPages_FailureKeepsKeywordCount(t *testing.T) {
	src := adsource.NewMemory(10)
	src.AddToPage(rawAd("1", "ok", "", 0), rawAd("2", "ok", "", 0))
	src.FailPage("down", errors.New("rate limited"))
	f := newFixture(src)

	rc, err := f.runner.RecountPages(context.Background(), []models.Page{
		{ID: "ok", AdIDs: []string{"1"}},
		{ID: "down", AdIDs: []string{"9", "8"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rc.Recounted)
	assert.Equal(t, 1, rc.Failed)

	require.Len(t, rc.Pages, 2)
	assert.Equal(t, 2, rc.Pages[0].TotalAds())
	assert.Nil(t, rc.Pages[1].ActiveAds)
	assert.Equal(t, 2, rc.Pages[1].TotalAds())

	_, err = f.store.FindPage(context.Background(), "u1", "down")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecountStored(t *testing.T) {
	src := adsource.NewMemory(10)
	src.AddToPage(rawAd("1", "shop", "shop.fr", 0), rawAd("2", "shop", "shop.fr", 0), rawAd("3", "new", "", 0))
	f := newFixture(src)
	ctx := context.Background()
	require.NoError(t, f.store.SavePages(ctx, "u1", []models.Page{
		{ID: "shop", AdIDs: []string{"1"}, WebsiteURL: "https://shop.fr"},
		{ID: "nosite", AdIDs: []string{"7"}},
	}))

	rc, err := f.runner.RecountStored(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rc.Pages, 1)
	assert.Equal(t, "shop", rc.Pages[0].ID)
	assert.Equal(t, 2, rc.Pages[0].TotalAds())

	rc, err = f.runner.RecountStored(ctx, []string{"new"})
	require.NoError(t, err)
	assert.Equal(t, 1, rc.Recounted)
	page, err := f.store.FindPage(ctx, "u1", "new")
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalAds())
}

func TestSearch_SkipsBlacklistedPages(t *testing.T) {
	src := adsource.NewMemory(10)
	src.Add("promo", rawAd("1", "keep", "", 0), rawAd("2", "drop", "", 0))
	f := newFixture(src)
	ctx := context.Background()
	require.NoError(t, f.store.SetFlags(ctx, "u1", "drop", models.PageFlags{Blacklisted: true}))

	res, err := f.runner.Search(ctx, []string{"promo"}, 0)
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "keep", res.Pages[0].ID)

	// another scope still sees both pages
	f.runner.Scope = "u2"
	res, err = f.runner.Search(ctx, []string{"promo"}, 0)
	require.NoError(t, err)
	assert.Len(t, res.Pages, 2)
}

func TestScout_RejectsInvalidConcurrency(t *testing.T) {
	src := adsource.NewMemory(10)
	f := newFixture(src)

	_, err := f.runner.Scout(context.Background(), pipeline.ScoutRequest{Keywords: []string{"x"}, MaxConcurrent: 21})
	assert.ErrorIs(t, err, website.ErrInvalidConcurrency)
	assert.Zero(t, src.Calls())
}

func TestScout_NoKeywords(t *testing.T) {
	f := newFixture(adsource.NewMemory(10))
	_, err := f.runner.Scout(context.Background(), pipeline.ScoutRequest{Keywords: []string{"  "}, MaxConcurrent: 1})
	assert.ErrorIs(t, err, search.ErrNoKeywords)
}

func TestAnalyze_StoresEveryRecord(t *testing.T) {
	f := newFixture(adsource.NewMemory(10))
	ctx := context.Background()
	analyses, err := f.runner.Analyze(ctx, []string{"https://a.fr", "https://b.fr"}, 2)
	require.NoError(t, err)
	require.Len(t, analyses, 2)

	all, err := f.store.ListAnalyses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "https://a.fr", all[0].URL)
	assert.Equal(t, analyses[1].ID, all[1].ID)
}

func TestAnalyze_CancelledSitesKeepEarlierAnalysis(t *testing.T) {
	f := newFixture(adsource.NewMemory(10))
	count := 42
	good := models.WebsiteAnalysis{
		ID:           "good",
		URL:          "https://bijoux.fr",
		Success:      true,
		Platform:     "Shopify",
		ProductCount: &count,
		AnalyzedAt:   now.Add(-time.Hour),
	}
	require.NoError(t, f.store.SaveAnalysis(context.Background(), "u1", good))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	analyses, err := f.runner.Analyze(ctx, []string{"https://bijoux.fr"}, 1)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.True(t, analyses[0].Cancelled)
	assert.Empty(t, f.probed)

	stored, err := f.store.LatestAnalysis(context.Background(), "u1", "https://bijoux.fr")
	require.NoError(t, err)
	assert.Equal(t, "good", stored.ID)
	require.NotNil(t, stored.ProductCount)
	assert.Equal(t, 42, *stored.ProductCount)
}

func TestSites(t *testing.T) {
	pages := []models.Page{
		{ID: "a", AdIDs: make([]string, 20), WebsiteURL: "https://shop.fr"},
		{ID: "b", AdIDs: make([]string, 30), WebsiteURL: "https://shop.fr/collections"},
		{ID: "c", AdIDs: make([]string, 16)},
		{ID: "d", AdIDs: make([]string, 3), WebsiteURL: "https://tiny.fr"},
		{ID: "e", AdIDs: make([]string, 15), WebsiteURL: "https://other.fr"},
	}
	sites, missing := pipeline.Sites(pages, pipeline.DefaultExportMinAds)
	assert.Equal(t, []string{"https://shop.fr", "https://other.fr"}, sites)
	assert.Equal(t, 1, missing)
	assert.False(t, strings.Contains(strings.Join(sites, ","), "tiny"))
}
