package website

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"
)

// HeadlessProber renders pages in a stealth Chromium tab. It is used as a
// fallback for sites that refuse plain HTTP clients, and applies the same
// redirect cap as Prober.
type HeadlessProber struct {
	timeout      time.Duration
	maxRedirects int

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func NewHeadlessProber(timeout time.Duration, maxRedirects int) *HeadlessProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	return &HeadlessProber{timeout: timeout, maxRedirects: maxRedirects}
}

// redirectBudget counts main document redirects of one navigation.
type redirectBudget struct {
	max  int
	hops int
}

// hop records a redirect and reports whether the budget is now exceeded.
func (b *redirectBudget) hop() bool {
	b.hops++
	return b.exceeded()
}

func (b *redirectBudget) exceeded() bool { return b.hops > b.max }

func (h *HeadlessProber) connect() (*rod.Browser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser != nil {
		return h.browser, nil
	}

	l := launcher.New().Headless(true).Logger(io.Discard)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	h.launcher, h.browser = l, browser
	return browser, nil
}

func (h *HeadlessProber) Probe(ctx context.Context, rawURL string) FetchOutcome {
	out := FetchOutcome{RequestURL: rawURL}
	target, err := NormalizeURL(rawURL)
	if err != nil {
		out.Err = err
		return out
	}

	browser, err := h.connect()
	if err != nil {
		out.Err = err
		return out
	}

	page, err := rodstealth.Page(browser)
	if err != nil {
		out.Err = fmt.Errorf("open page: %w", err)
		return out
	}
	defer page.Close()

	timed := page.Context(ctx).Timeout(h.timeout)

	// callbacks run inside wait(), on this goroutine
	var status int
	budget := redirectBudget{max: h.maxRedirects}
	wait := timed.EachEvent(func(e *proto.NetworkRequestWillBeSent) bool {
		if e.Type == proto.NetworkResourceTypeDocument && e.RedirectResponse != nil {
			return budget.hop()
		}
		return false
	}, func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			status = e.Response.Status
			return true
		}
		return false
	})

	if err := timed.Navigate(target); err != nil {
		out.Err = h.classify(ctx, target, err)
		return out
	}
	wait()
	if budget.exceeded() {
		out.Err = h.tooManyRedirects(target)
		return out
	}
	if err := timed.WaitLoad(); err != nil {
		out.Err = h.classify(ctx, target, err)
		return out
	}
	// a page that never settles is still rendered; only cancellation stops here
	if err := timed.WaitDOMStable(time.Second, 0.1); err != nil && ctx.Err() != nil {
		out.Err = ctx.Err()
		return out
	}

	html, err := timed.HTML()
	if err != nil {
		out.Err = h.classify(ctx, target, err)
		return out
	}
	out.Body = []byte(html)
	out.FinalURL = target
	if info, err := page.Info(); err == nil {
		out.FinalURL = info.URL
	}
	out.StatusCode = status
	if out.StatusCode == 0 {
		out.StatusCode = 200
	}

	if cookies, err := page.Cookies(nil); err == nil {
		for _, c := range cookies {
			out.Cookies = append(out.Cookies, c.Name)
		}
	}
	return out
}

func (h *HeadlessProber) tooManyRedirects(target string) error {
	return fmt.Errorf("%w: more than %d hops from %s", ErrTooManyRedirects, h.maxRedirects, target)
}

func (h *HeadlessProber) classify(ctx context.Context, target string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) && navErr.Reason == "net::ERR_TOO_MANY_REDIRECTS" {
		return h.tooManyRedirects(target)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %s", ErrFetchTimeout, h.timeout, target)
	}
	return fmt.Errorf("render %s: %w", target, err)
}

// Close shuts the browser down if it was started.
func (h *HeadlessProber) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser == nil {
		return nil
	}
	err := h.browser.Close()
	h.launcher.Cleanup()
	h.browser, h.launcher = nil, nil
	return err
}
