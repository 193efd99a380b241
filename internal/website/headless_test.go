package website_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/lukman83/adscout/internal/website"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireBrowser skips tests that need a local Chromium.
func requireBrowser(t *testing.T) {
	t.Helper()
	if os.Getenv("ROD_BROWSER_BIN") != "" {
		return
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no Chromium found; set ROD_BROWSER_BIN to run headless tests")
	}
}

// hopServer redirects /hop/N to /hop/N+1 until /hop/last, which renders.
func hopServer(last int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if n < last {
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n+1), http.StatusFound)
			return
		}
		io.WriteString(w, "<html><head><title>arrived</title></head><body>ok</body></html>")
	}))
}

func TestHeadlessProber_FollowsRedirectsWithinCap(t *testing.T) {
	requireBrowser(t)
	srv := hopServer(3)
	defer srv.Close()

	h := website.NewHeadlessProber(20*time.Second, 5)
	defer h.Close()

	out := h.Probe(context.Background(), srv.URL+"/hop/0")
	require.NoError(t, out.Err)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, srv.URL+"/hop/3", out.FinalURL)
	assert.Contains(t, string(out.Body), "arrived")
}

func TestHeadlessProber_RedirectCap(t *testing.T) {
	requireBrowser(t)
	srv := hopServer(8)
	defer srv.Close()

	h := website.NewHeadlessProber(20*time.Second, 5)
	defer h.Close()

	out := h.Probe(context.Background(), srv.URL+"/hop/0")
	assert.ErrorIs(t, out.Err, website.ErrTooManyRedirects)
	assert.Empty(t, out.Body)
}

func TestHeadlessProber_CancelledContext(t *testing.T) {
	requireBrowser(t)
	srv := hopServer(0)
	defer srv.Close()

	h := website.NewHeadlessProber(20*time.Second, 5)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := h.Probe(ctx, srv.URL+"/hop/0")
	assert.ErrorIs(t, out.Err, context.Canceled)
}
