package meta_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/meta"
	"github.com/lukman83/adscout/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, srv *httptest.Server) *meta.Client {
	t.Helper()
	return meta.NewClient(srv.Client(), nil, log.New(io.Discard), meta.Config{
		AccessToken: "token",
		BaseURL:     srv.URL,
	})
}

func TestQuery_BuildsRequestAndFollowsCursor(t *testing.T) {
	var mu sync.Mutex
	var seen []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()

		assert.Equal(t, "/v24.0/ads_archive", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after") == "" {
			fmt.Fprint(w, `{"data":[{"id":"12345678901234567","page_id":"1"}],"paging":{"cursors":{"after":"c1"},"next":"https://graph.facebook.com/next"}}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"2","page_id":"1"}],"paging":{"cursors":{"after":"c2"}}}`)
	}))
	defer srv.Close()

	c := newClient(t, srv)
	q := adsource.Query{Keyword: "robe", Countries: []string{"FR", "BE"}, Languages: []string{"fr"}}

	var ids []string
	for page, err := range adsource.Pages(context.Background(), c, q) {
		require.NoError(t, err)
		for _, raw := range page.Ads {
			ad, err := search.Normalize(raw)
			require.NoError(t, err)
			ids = append(ids, ad.ID)
		}
	}

	assert.Equal(t, []string{"12345678901234567", "2"}, ids)
	require.Len(t, seen, 2)
	params := seen[0].URL.Query()
	assert.Equal(t, "token", params.Get("access_token"))
	assert.Equal(t, "robe", params.Get("search_terms"))
	assert.Equal(t, `["FR","BE"]`, params.Get("ad_reached_countries"))
	assert.Equal(t, `["fr"]`, params.Get("languages"))
	assert.Equal(t, "ACTIVE", params.Get("ad_active_status"))
	assert.Equal(t, "1000", params.Get("limit"))
	assert.Equal(t, "c1", seen[1].URL.Query().Get("after"))
}

func TestQuery_ByPageIDs(t *testing.T) {
	var params map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params = r.URL.Query()
		fmt.Fprint(w, `{"data":[{"id":"9","page_id":"42"}]}`)
	}))
	defer srv.Close()

	page, err := newClient(t, srv).Query(context.Background(), adsource.Query{PageIDs: []string{"42"}, Countries: []string{"FR"}})
	require.NoError(t, err)
	assert.Len(t, page.Ads, 1)
	assert.Empty(t, page.Next)

	assert.Equal(t, []string{`["42"]`}, params["search_page_ids"])
	assert.NotContains(t, params, "search_terms")
	assert.NotContains(t, params, "search_type")
}

func TestQuery_HalvesLimitWhenAskedToReduceData(t *testing.T) {
	var mu sync.Mutex
	var limits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		limits = append(limits, r.URL.Query().Get("limit"))
		mu.Unlock()
		if r.URL.Query().Get("limit") != "250" {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"Please reduce the amount of data you're asking for, then retry your request","code":1}}`)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	page, err := newClient(t, srv).Query(context.Background(), adsource.Query{Keyword: "x"})
	require.NoError(t, err)
	assert.Empty(t, page.Ads)
	assert.Empty(t, page.Next)
	assert.Equal(t, []string{"1000", "500", "250"}, limits)
}

func TestQuery_GivesUpAtMinimumLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"reduce the amount of data","code":1}}`)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).Query(context.Background(), adsource.Query{Keyword: "x"})
	var apiErr *meta.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.TooMuchData())
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestQuery_AuthErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).Query(context.Background(), adsource.Query{Keyword: "x"})
	var apiErr *meta.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 190, apiErr.Code)
	assert.False(t, apiErr.TooMuchData())
}

func TestQuery_RequiresToken(t *testing.T) {
	c := meta.NewClient(http.DefaultClient, nil, nil, meta.Config{})
	_, err := c.Query(context.Background(), adsource.Query{Keyword: "x"})
	assert.ErrorIs(t, err, meta.ErrMissingToken)
}
