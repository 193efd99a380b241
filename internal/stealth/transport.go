package stealth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrDisallowed is returned for requests robots.txt forbids.
var ErrDisallowed = errors.New("blocked by robots.txt")

// StealthTransport is an http.RoundTripper that applies the polite fetch
// pipeline: Fingerprint → RobotsCheck → RateLimiter → Delay → Proxy → Send.
// Every stage is optional.
type StealthTransport struct {
	Base        http.RoundTripper
	Robots      *RobotsChecker
	Fingerprint *FingerprintPool
	Proxy       *ProxyRotator
	Delay       *HumanDelay
	RateLimiter *rate.Limiter
}

func (t *StealthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	fp := Fingerprint{UserAgent: req.Header.Get("User-Agent")}
	if t.Fingerprint != nil {
		fp = t.Fingerprint.Next()
		req = req.Clone(ctx)
		req.Header.Set("User-Agent", fp.UserAgent)
		for key, vals := range fp.Headers {
			if req.Header.Get(key) == "" {
				for _, v := range vals {
					req.Header.Add(key, v)
				}
			}
		}
	}

	crawlDelay := t.crawlDelay(req, fp.UserAgent)
	if t.Robots != nil {
		allowed, err := t.Robots.IsAllowed(ctx, fp.UserAgent, req.URL.String())
		if err == nil && !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, req.URL.Path)
		}
	}

	if t.RateLimiter != nil {
		if err := t.RateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if t.Delay != nil || crawlDelay > 0 {
		if err := t.Delay.Wait(ctx, crawlDelay); err != nil {
			return nil, fmt.Errorf("delay: %w", err)
		}
	}

	transport := t.Base
	if t.Proxy != nil {
		transport = t.Proxy.Next().Transport()
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return transport.RoundTrip(req)
}

func (t *StealthTransport) crawlDelay(req *http.Request, userAgent string) time.Duration {
	if t.Robots == nil || req.URL.Path == "/robots.txt" {
		return 0
	}
	return t.Robots.CrawlDelay(req.Context(), userAgent, req.URL.Scheme+"://"+req.URL.Host)
}
