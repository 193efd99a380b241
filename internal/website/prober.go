package website

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lukman83/adscout/internal/httputil"
)

var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrFetchTimeout     = errors.New("fetch timed out")
	ErrInvalidURL       = errors.New("invalid url")
)

const (
	DefaultTimeout      = 25 * time.Second
	DefaultMaxRedirects = 5
)

// FetchOutcome is the result of probing one URL. Err is set when no usable
// response was obtained; a 4xx or 5xx response is not an error here.
type FetchOutcome struct {
	RequestURL string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Cookies    []string
	Body       []byte
	Err        error
}

// OK reports whether the fetch produced a non-error response.
func (o FetchOutcome) OK() bool {
	return o.Err == nil && o.StatusCode > 0 && o.StatusCode < 400
}

// Fetcher probes a URL.
type Fetcher interface {
	Probe(ctx context.Context, rawURL string) FetchOutcome
}

// RedirectPolicy returns a CheckRedirect function that allows at most
// maxHops redirects.
func RedirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if maxHops >= 0 && len(via) > maxHops {
			return ErrTooManyRedirects
		}
		return nil
	}
}

type ProberOptions struct {
	Timeout      time.Duration
	MaxRedirects int
}

// Prober fetches a site's landing page. It never retries.
type Prober struct {
	client *http.Client
	opts   ProberOptions
}

func NewProber(transport http.RoundTripper, opts ProberOptions) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Prober{
		client: &http.Client{
			Transport:     transport,
			CheckRedirect: RedirectPolicy(opts.MaxRedirects),
		},
		opts: opts,
	}
}

// NormalizeURL adds an https scheme when missing and validates the host.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(s, "://") {
		s = "https://" + strings.TrimPrefix(s, "//")
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

// Origin returns scheme://host of rawURL.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(rawURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

func (p *Prober) Probe(ctx context.Context, rawURL string) FetchOutcome {
	out := FetchOutcome{RequestURL: rawURL}
	target, err := NormalizeURL(rawURL)
	if err != nil {
		out.Err = err
		return out
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, target, nil)
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrInvalidURL, err)
		return out
	}
	httputil.Apply(req, httputil.BrowserHeaders())

	resp, err := p.client.Do(req)
	if err != nil {
		out.Err = p.classify(ctx, fetchCtx, target, err)
		return out
	}
	defer resp.Body.Close()

	out.FinalURL = resp.Request.URL.String()
	out.StatusCode = resp.StatusCode
	out.Headers = resp.Header
	for _, c := range resp.Cookies() {
		out.Cookies = append(out.Cookies, c.Name)
	}

	body, err := httputil.ReadBody(resp)
	if err != nil {
		out.Err = p.classify(ctx, fetchCtx, target, err)
		return out
	}
	out.Body = body
	return out
}

func (p *Prober) classify(parent, fetchCtx context.Context, target string, err error) error {
	switch {
	case errors.Is(err, ErrTooManyRedirects):
		return fmt.Errorf("%w: more than %d hops from %s", ErrTooManyRedirects, p.opts.MaxRedirects, target)
	case parent.Err() != nil:
		return parent.Err()
	case errors.Is(fetchCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s: %s", ErrFetchTimeout, p.opts.Timeout, target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrFetchTimeout, target, err)
	}
	return fmt.Errorf("fetch %s: %w", target, err)
}
