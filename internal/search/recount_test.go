package search_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDominantCurrency(t *testing.T) {
	tests := []struct {
		name       string
		currencies []string
		want       string
	}{
		{"empty", nil, ""},
		{"most frequent wins over first", []string{"usd", "EUR", "eur", " Eur "}, "EUR"},
		{"tie goes to first code alphabetically", []string{"USD", "EUR"}, "EUR"},
		{"blank ignored", []string{"", " ", "GBP"}, "GBP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ads := make([]models.Ad, len(tt.currencies))
			for i, c := range tt.currencies {
				ads[i].Currency = c
			}
			assert.Equal(t, tt.want, search.DominantCurrency(ads))
		})
	}
}

func TestSearch_PageCurrencyIsMostFrequent(t *testing.T) {
	src := adsource.NewMemory(10)
	src.Add("a",
		adsource.RawAd{"id": "1", "page_id": "p", "currency": "USD"},
		adsource.RawAd{"id": "2", "page_id": "p", "currency": "EUR"},
		adsource.RawAd{"id": "3", "page_id": "p", "currency": "EUR"},
	)

	res, err := newAggregator(src).Search(context.Background(), search.Request{Keywords: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "EUR", res.Pages[0].Currency)
}

func TestPageAds_FetchesEveryAdOfThePage(t *testing.T) {
	src := adsource.NewMemory(2)
	src.Add("robe", ad("1", "p1"), ad("2", "p2"))
	src.AddToPage(ad("3", "p1"), ad("4", "p1"), ad("1", "p1"), ad("5", "p1"))

	ads, err := newAggregator(src).PageAds(context.Background(), "p1", []string{"FR"}, nil)
	require.NoError(t, err)

	ids := make([]string, len(ads))
	for i, a := range ads {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"1", "3", "4", "5"}, ids)
	assert.Equal(t, 2, src.Calls())
}

func TestPageAds_FailureIsAnError(t *testing.T) {
	src := adsource.NewMemory(10)
	src.AddToPage(ad("1", "p1"))
	boom := errors.New("boom")
	src.FailPage("p1", boom)

	ads, err := newAggregator(src).PageAds(context.Background(), "p1", nil, nil)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, ads)
}
