package stealth

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
)

// ProxyProvider abstracts a proxy backend.
type ProxyProvider interface {
	Transport() http.RoundTripper
	Name() string
}

// ProxyRotator cycles through multiple proxy providers.
type ProxyRotator struct {
	providers []ProxyProvider
	mu        sync.Mutex
	idx       int
}

// NewProxyRotator creates a rotator from a list of providers.
// Returns nil if no providers are given.
func NewProxyRotator(providers []ProxyProvider) *ProxyRotator {
	if len(providers) == 0 {
		return nil
	}
	return &ProxyRotator{providers: providers}
}

// Next returns the next proxy provider in round-robin order.
func (p *ProxyRotator) Next() ProxyProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	provider := p.providers[p.idx%len(p.providers)]
	p.idx++
	return provider
}

// Len reports how many providers the rotator cycles through.
func (p *ProxyRotator) Len() int {
	if p == nil {
		return 0
	}
	return len(p.providers)
}

// DirectProvider routes traffic without a proxy.
type DirectProvider struct {
	Base http.RoundTripper
}

func (d *DirectProvider) Transport() http.RoundTripper {
	if d.Base == nil {
		return http.DefaultTransport
	}
	return d.Base
}

func (d *DirectProvider) Name() string { return "direct" }

// HTTPProxyProvider routes traffic through one http, https or socks5 proxy.
type HTTPProxyProvider struct {
	proxyURL  *url.URL
	transport http.RoundTripper
}

// NewHTTPProxyProvider parses rawURL and builds a transport for it.
func NewHTTPProxyProvider(rawURL string) (*HTTPProxyProvider, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("proxy %q: unsupported scheme %q", u.Redacted(), u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy %q: missing host", u.Redacted())
	}
	return &HTTPProxyProvider{
		proxyURL: u,
		transport: &http.Transport{
			Proxy:             http.ProxyURL(u),
			DisableKeepAlives: true, // new exit IP per request on rotating gateways
		},
	}, nil
}

// Name is the proxy host; credentials never appear in logs.
func (h *HTTPProxyProvider) Name() string { return h.proxyURL.Host }

func (h *HTTPProxyProvider) Transport() http.RoundTripper { return h.transport }

// LoadProxyFile reads one proxy URL per line. Blank lines and lines
// starting with # are ignored.
func LoadProxyFile(path string) ([]ProxyProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	var providers []ProxyProvider
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p, err := NewHTTPProxyProvider(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		providers = append(providers, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}
	return providers, nil
}
