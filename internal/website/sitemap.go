package website

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/lukman83/adscout/internal/httputil"
)

const (
	DefaultSitemapDepth = 3
	DefaultMaxSitemaps  = 25
	DefaultMaxProducts  = 50_000
)

// SitemapPaths are the well-known roots, in the order they are tried.
var SitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap_products_1.xml",
	"/product-sitemap.xml",
	"/wp-sitemap.xml",
}

var (
	productPath = regexp.MustCompile(`(?i)/(?:products?|produits?|p|item)/[^/?#]+`)
	langPrefix  = regexp.MustCompile(`^/([a-z]{2})(?:-[a-z]{2})?/`)

	errNotSitemap = errors.New("not a sitemap document")
)

// SitemapDiscoverer lists sitemaps declared for an origin, typically from
// robots.txt.
type SitemapDiscoverer interface {
	Sitemaps(ctx context.Context, origin string) []string
}

type SitemapOptions struct {
	MaxDepth    int
	MaxSitemaps int
	MaxProducts int
	Timeout     time.Duration
	// Language, when set, skips child sitemaps and product URLs under another
	// two-letter language prefix.
	Language string
}

// SitemapReport describes one sitemap walk.
type SitemapReport struct {
	Root      string `json:"root,omitempty"`
	Found     bool   `json:"found"`
	Products  int    `json:"products"`
	Documents int    `json:"documents"`
	Skipped   int    `json:"skipped"`
	Truncated bool   `json:"truncated"`
}

// SitemapCounter estimates catalog size from a site's sitemaps.
type SitemapCounter struct {
	client   *http.Client
	discover SitemapDiscoverer
	opts     SitemapOptions
}

func NewSitemapCounter(client *http.Client, discover SitemapDiscoverer, opts SitemapOptions) *SitemapCounter {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultSitemapDepth
	}
	if opts.MaxSitemaps <= 0 {
		opts.MaxSitemaps = DefaultMaxSitemaps
	}
	if opts.MaxProducts <= 0 {
		opts.MaxProducts = DefaultMaxProducts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	opts.Language = strings.ToLower(opts.Language)
	return &SitemapCounter{client: client, discover: discover, opts: opts}
}

// CountProducts returns the number of distinct product URLs found in the
// site's sitemaps. found is false when no sitemap could be fetched and
// parsed at all, which is different from a sitemap listing zero products.
func (s *SitemapCounter) CountProducts(ctx context.Context, baseURL string) (int, bool) {
	r := s.Walk(ctx, baseURL)
	return r.Products, r.Found
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

type sitemapDoc struct {
	XMLName  xml.Name
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type queued struct {
	url   string
	depth int
}

// Walk locates the first parseable sitemap root and walks it breadth first.
func (s *SitemapCounter) Walk(ctx context.Context, baseURL string) SitemapReport {
	var report SitemapReport
	origin := Origin(baseURL)

	var root *sitemapDoc
	for _, candidate := range s.candidates(ctx, origin) {
		if ctx.Err() != nil {
			return report
		}
		doc, err := s.fetch(ctx, candidate)
		if err != nil {
			continue
		}
		root, report.Root = doc, candidate
		break
	}
	if root == nil {
		return report
	}
	report.Found = true

	products := map[string]bool{}
	visited := map[string]bool{report.Root: true}
	queue := []queued{}

	process := func(doc *sitemapDoc, depth int) {
		report.Documents++
		for _, u := range doc.URLs {
			loc := strings.TrimSpace(u.Loc)
			if !s.isProduct(loc) || products[loc] {
				continue
			}
			if len(products) >= s.opts.MaxProducts {
				report.Truncated = true
				return
			}
			products[loc] = true
		}
		for _, child := range s.children(doc) {
			if visited[child] {
				continue
			}
			visited[child] = true
			if depth+1 > s.opts.MaxDepth {
				report.Truncated = true
				continue
			}
			queue = append(queue, queued{url: child, depth: depth + 1})
		}
	}

	process(root, 0)
	for len(queue) > 0 && ctx.Err() == nil {
		// failed fetches cost a request too
		if report.Documents+report.Skipped >= s.opts.MaxSitemaps {
			report.Truncated = true
			break
		}
		next := queue[0]
		queue = queue[1:]
		doc, err := s.fetch(ctx, next.url)
		if err != nil {
			report.Skipped++
			continue
		}
		process(doc, next.depth)
	}

	report.Products = len(products)
	return report
}

func (s *SitemapCounter) candidates(ctx context.Context, origin string) []string {
	out := make([]string, 0, len(SitemapPaths)+2)
	seen := map[string]bool{}
	for _, p := range SitemapPaths {
		u := origin + p
		seen[u] = true
		out = append(out, u)
	}
	if s.discover != nil {
		for _, u := range s.discover.Sitemaps(ctx, origin) {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}

// children returns the child sitemaps of an index worth walking. When some
// children are product sitemaps only those are kept.
func (s *SitemapCounter) children(doc *sitemapDoc) []string {
	var all, product []string
	for _, sm := range doc.Sitemaps {
		loc := strings.TrimSpace(sm.Loc)
		if loc == "" || !s.languageOK(loc) {
			continue
		}
		all = append(all, loc)
		if strings.Contains(strings.ToLower(loc), "product") || strings.Contains(strings.ToLower(loc), "produit") {
			product = append(product, loc)
		}
	}
	if len(product) > 0 {
		return product
	}
	return all
}

func (s *SitemapCounter) isProduct(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil || !productPath.MatchString(u.Path) {
		return false
	}
	return s.languageOK(loc)
}

func (s *SitemapCounter) languageOK(loc string) bool {
	if s.opts.Language == "" {
		return true
	}
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	m := langPrefix.FindStringSubmatch(strings.ToLower(u.Path))
	return m == nil || m[1] == s.opts.Language
}

func (s *SitemapCounter) fetch(ctx context.Context, loc string) (*sitemapDoc, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, err
	}
	httputil.Apply(req, httputil.SitemapHeaders())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap %s: status %d", loc, resp.StatusCode)
	}

	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	// .xml.gz files are served gzipped without a Content-Encoding header
	if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body, err = io.ReadAll(io.LimitReader(gz, httputil.MaxBodyBytes))
		if err != nil {
			return nil, err
		}
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", loc, err)
	}
	if doc.XMLName.Local != "urlset" && doc.XMLName.Local != "sitemapindex" {
		return nil, fmt.Errorf("%w: root <%s> at %s", errNotSitemap, doc.XMLName.Local, loc)
	}
	return &doc, nil
}
