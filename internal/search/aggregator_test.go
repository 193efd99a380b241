package search_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/progress"
	"github.com/lukman83/adscout/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ad(id, page string) adsource.RawAd {
	return adsource.RawAd{"id": id, "page_id": page, "page_name": "Page " + page}
}

func newAggregator(src adsource.Source) *search.Aggregator {
	return search.NewAggregator(src, log.New(io.Discard), search.Options{KeywordConcurrency: 2})
}

func pageByID(res *models.SearchResult, id string) (models.Page, bool) {
	for _, p := range res.Pages {
		if p.ID == id {
			return p, true
		}
	}
	return models.Page{}, false
}

func TestSearch_DeduplicatesAcrossKeywords(t *testing.T) {
	src := adsource.NewMemory(2)
	src.Add("shoes", ad("1", "p1"), ad("2", "p1"), ad("3", "p2"))
	src.Add("sneakers", ad("2", "p1"), ad("4", "p1"))

	res, err := newAggregator(src).Search(context.Background(), search.Request{
		Keywords: []string{"shoes", "sneakers"},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, res.TotalAds)
	assert.Equal(t, 4, res.UniqueAds)
	assert.Equal(t, map[string]int{"shoes": 3, "sneakers": 2}, res.KeywordStats)
	assert.False(t, res.Partial)
	assert.NotEmpty(t, res.ID)

	p1, ok := pageByID(res, "p1")
	require.True(t, ok)
	assert.Equal(t, 3, p1.AdCount())
	assert.ElementsMatch(t, []string{"1", "2", "4"}, p1.AdIDs)
	assert.Equal(t, models.BucketXS, p1.Bucket)
	assert.Equal(t, []string{"shoes", "sneakers"}, p1.Keywords)

	for _, a := range res.Ads {
		if a.ID == "2" {
			assert.Equal(t, []string{"shoes", "sneakers"}, a.Keywords)
		}
	}
}

func TestSearch_IsIdempotent(t *testing.T) {
	src := adsource.NewMemory(10)
	src.Add("a", ad("shared", "p"))
	src.Add("b", ad("shared", "p"))
	agg := newAggregator(src)

	for range 2 {
		res, err := agg.Search(context.Background(), search.Request{Keywords: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.UniqueAds)
		assert.Equal(t, 1, res.KeywordStats["a"])
		assert.Equal(t, 1, res.KeywordStats["b"])
	}
}

func TestSearch_FiltersAfterAggregation(t *testing.T) {
	src := adsource.NewMemory(10)
	// p1 only reaches the threshold when both keywords are combined
	src.Add("a", ad("1", "p1"), ad("2", "p1"), ad("9", "blocked"), ad("10", "blocked"), ad("11", "blocked"))
	src.Add("b", ad("3", "p1"), ad("5", "p2"))

	res, err := newAggregator(src).Search(context.Background(), search.Request{
		Keywords:        []string{"a", "b"},
		MinAds:          3,
		ExcludedPageIDs: map[string]bool{"blocked": true},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.PagesBeforeFilter)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "p1", res.Pages[0].ID)
	assert.Equal(t, 1, res.PageCount)
	assert.Len(t, res.Ads, 3)
	// stats are computed before page filtering
	assert.Equal(t, 5, res.KeywordStats["a"])
}

func TestSearch_MalformedAdsAreRejected(t *testing.T) {
	src := adsource.NewMemory(10)
	src.Add("a", ad("1", "p"), adsource.RawAd{"page_id": "p"}, adsource.RawAd{"id": "3"})

	res, err := newAggregator(src).Search(context.Background(), search.Request{Keywords: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, 1, res.UniqueAds)
}

func TestSearch_FailedQueryPageDoesNotAbortSearch(t *testing.T) {
	src := adsource.NewMemory(1)
	src.Add("a", ad("1", "p"), ad("2", "p"))
	src.Add("b", ad("3", "q"))
	src.FailAt("a", "1", errors.New("rate limited"))

	res, err := newAggregator(src).Search(context.Background(), search.Request{Keywords: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedQueries)
	assert.Equal(t, 2, res.UniqueAds)
	assert.Equal(t, 1, res.KeywordStats["a"])
}

func TestSearch_ConfigurationErrors(t *testing.T) {
	src := adsource.NewMemory(10)
	agg := newAggregator(src)

	_, err := agg.Search(context.Background(), search.Request{Keywords: []string{" ", ""}})
	assert.ErrorIs(t, err, search.ErrNoKeywords)

	_, err = agg.Search(context.Background(), search.Request{Keywords: []string{"a"}, MinAds: -1})
	assert.ErrorIs(t, err, search.ErrInvalidMinAds)

	assert.Equal(t, 0, src.Calls())
}

func TestSearch_CancellationReturnsPartialResult(t *testing.T) {
	src := adsource.NewMemory(10)
	src.Add("fast", ad("1", "p"))
	src.Add("slow", ad("2", "q"))
	src.Block("slow")
	defer src.Release()

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	ctx = progress.With(ctx, func(msg string) {
		once.Do(cancel)
	})

	done := make(chan *models.SearchResult)
	go func() {
		res, err := newAggregator(src).Search(ctx, search.Request{Keywords: []string{"fast", "slow"}})
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case res := <-done:
		require.NotNil(t, res)
		assert.True(t, res.Partial)
		assert.Equal(t, 1, res.UniqueAds)
		assert.Equal(t, 0, res.FailedQueries)
	case <-time.After(5 * time.Second):
		t.Fatal("search did not return after cancellation")
	}
}

func TestSearch_ResolvesWebsiteAndCurrency(t *testing.T) {
	src := adsource.NewMemory(10)
	src.Add("a",
		adsource.RawAd{"id": "1", "page_id": "p", "ad_creative_link_captions": []any{"MYSHOP.FR"}, "currency": "eur"},
		adsource.RawAd{"id": "2", "page_id": "p", "ad_creative_link_captions": []any{"myshop.fr"}},
		adsource.RawAd{"id": "3", "page_id": "p", "ad_creative_link_captions": []any{"facebook.com"}},
	)

	res, err := newAggregator(src).Search(context.Background(), search.Request{Keywords: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "https://myshop.fr", res.Pages[0].WebsiteURL)
	assert.Equal(t, "EUR", res.Pages[0].Currency)
}
