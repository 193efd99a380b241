package search_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_FullPayload(t *testing.T) {
	var raw adsource.RawAd
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "120210",
		"page_id": "998",
		"page_name": " Maison Lila ",
		"ad_creation_time": "2025-02-11",
		"ad_creative_bodies": ["Nouvelle collection", " "],
		"ad_creative_link_captions": ["maisonlila.fr"],
		"ad_snapshot_url": "https://www.facebook.com/ads/archive/render_ad/?id=120210",
		"eu_total_reach": {"lower_bound": 10000, "upper_bound": 20000},
		"publisher_platforms": ["facebook", "instagram"],
		"currency": "eur"
	}`), &raw))

	ad, err := search.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "120210", ad.ID)
	assert.Equal(t, "998", ad.PageID)
	assert.Equal(t, "Maison Lila", ad.PageName)
	assert.Equal(t, []string{"Nouvelle collection"}, ad.Bodies)
	assert.Equal(t, time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC), ad.CreatedAt)
	require.NotNil(t, ad.Reach)
	assert.Equal(t, int64(15000), *ad.Reach)
	assert.True(t, ad.Active)
	assert.Equal(t, "EUR", ad.Currency)
	assert.Equal(t, []string{"facebook", "instagram"}, ad.Platforms)
}

func TestNormalize_WeakTypes(t *testing.T) {
	ad, err := search.Normalize(adsource.RawAd{
		"id":                    float64(42),
		"page_id":               json.Number("7"),
		"eu_total_reach":        "3100",
		"ad_creation_time":      "2025-01-02T10:00:00+0000",
		"ad_delivery_stop_time": "2025-01-09",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", ad.ID)
	assert.Equal(t, "7", ad.PageID)
	require.NotNil(t, ad.Reach)
	assert.Equal(t, int64(3100), *ad.Reach)
	assert.False(t, ad.Active)
	assert.Equal(t, 2025, ad.CreatedAt.Year())
}

func TestNormalize_MissingReachIsNil(t *testing.T) {
	ad, err := search.Normalize(adsource.RawAd{"id": "1", "page_id": "2"})
	require.NoError(t, err)
	assert.Nil(t, ad.Reach)
	assert.True(t, ad.CreatedAt.IsZero())
	assert.Equal(t, -1, ad.AgeDays(time.Now()))
}

func TestNormalize_MissingRequiredFields(t *testing.T) {
	testCases := []struct {
		name  string
		raw   adsource.RawAd
		field string
	}{
		{"no id", adsource.RawAd{"page_id": "2"}, "id"},
		{"blank id", adsource.RawAd{"id": "  ", "page_id": "2"}, "id"},
		{"no page id", adsource.RawAd{"id": "1"}, "page_id"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := search.Normalize(tc.raw)
			var malformed *search.MalformedAdError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tc.field, malformed.Field)
		})
	}
}

func TestWebsiteFromAds(t *testing.T) {
	testCases := []struct {
		name string
		ads  []models.Ad
		want string
	}{
		{
			name: "majority caption wins",
			ads: []models.Ad{
				{LinkCaptions: []string{"shop-a.com"}},
				{LinkCaptions: []string{"WWW.SHOP-B.COM"}},
				{LinkCaptions: []string{"shop-b.com"}},
			},
			want: "https://shop-b.com",
		},
		{
			name: "social domains ignored",
			ads: []models.Ad{
				{LinkCaptions: []string{"facebook.com", "l.instagram.com"}},
				{LinkTitles: []string{"Visit https://www.boutique.fr/collections/all"}},
			},
			want: "https://boutique.fr",
		},
		{
			name: "nothing usable",
			ads:  []models.Ad{{LinkTitles: []string{"Shop the sale now"}}},
			want: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, search.WebsiteFromAds(tc.ads))
		})
	}
}
