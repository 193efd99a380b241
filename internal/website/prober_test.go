package website_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lukman83/adscout/internal/website"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "example.com", want: "https://example.com"},
		{in: "  shop.fr/collections/all ", want: "https://shop.fr/collections/all"},
		{in: "//cdn.shop.fr", want: "https://cdn.shop.fr"},
		{in: "http://a.com/x", want: "http://a.com/x"},
		{in: "", wantErr: true},
		{in: "ftp://files.example.com", wantErr: true},
		{in: "https://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := website.NormalizeURL(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, website.ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://shop.fr", website.Origin("https://shop.fr/products/a?x=1"))
	assert.Equal(t, "http://127.0.0.1:8080", website.Origin("http://127.0.0.1:8080/"))
}

// redirectChain serves /hop/N which redirects to /hop/N+1 until N reaches
// limit, then answers 200.
func redirectChain(limit int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		if limit < 0 || n < limit {
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n+1), http.StatusFound)
			return
		}
		io.WriteString(w, "<html><body>arrived</body></html>")
	}))
}

func TestProbe_FollowsRedirectsWithinCap(t *testing.T) {
	srv := redirectChain(3)
	defer srv.Close()

	p := website.NewProber(nil, website.ProberOptions{MaxRedirects: 5})
	out := p.Probe(context.Background(), srv.URL+"/hop/0")

	require.NoError(t, out.Err)
	assert.True(t, out.OK())
	assert.Equal(t, srv.URL+"/hop/3", out.FinalURL)
	assert.Contains(t, string(out.Body), "arrived")
}

func TestProbe_TooManyRedirects(t *testing.T) {
	srv := redirectChain(-1)
	defer srv.Close()

	p := website.NewProber(nil, website.ProberOptions{MaxRedirects: 2})
	out := p.Probe(context.Background(), srv.URL+"/hop/0")

	assert.ErrorIs(t, out.Err, website.ErrTooManyRedirects)
	assert.False(t, out.OK())
}

func TestProbe_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	p := website.NewProber(nil, website.ProberOptions{Timeout: 50 * time.Millisecond})
	out := p.Probe(context.Background(), srv.URL)

	assert.ErrorIs(t, out.Err, website.ErrFetchTimeout)
}

func TestProbe_ParentCancellationIsNotATimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	out := website.NewProber(nil, website.ProberOptions{Timeout: 5 * time.Second}).Probe(ctx, srv.URL)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.NotErrorIs(t, out.Err, website.ErrFetchTimeout)
}

func TestProbe_ErrorStatusIsNotAFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "_shopify_y", Value: "1"})
		w.Header().Set("X-Shopify-Stage", "production")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out := website.NewProber(nil, website.ProberOptions{}).Probe(context.Background(), srv.URL)

	require.NoError(t, out.Err)
	assert.Equal(t, http.StatusNotFound, out.StatusCode)
	assert.False(t, out.OK())
	assert.Equal(t, []string{"_shopify_y"}, out.Cookies)
	assert.Equal(t, "production", out.Headers.Get("X-Shopify-Stage"))
}

func TestProbe_InvalidURL(t *testing.T) {
	out := website.NewProber(nil, website.ProberOptions{}).Probe(context.Background(), "mailto:someone")
	assert.ErrorIs(t, out.Err, website.ErrInvalidURL)
}
