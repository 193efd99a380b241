package website

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/progress"
	"golang.org/x/sync/errgroup"
)

// MaxConcurrentLimit is the largest batch concurrency accepted.
const MaxConcurrentLimit = 20

const (
	DefaultRetries      = 1
	DefaultRetryBackoff = time.Second
)

var ErrInvalidConcurrency = errors.New("invalid max concurrency")

// ProductCounter estimates the catalog size of a site.
type ProductCounter interface {
	CountProducts(ctx context.Context, baseURL string) (int, bool)
}

type AnalyzerOptions struct {
	// Retries is how many extra probes a timed out or unreachable site gets.
	// Zero means DefaultRetries, negative disables retrying.
	Retries      int
	RetryBackoff time.Duration
	// Fallback, when set, re-fetches sites that answer 403, 429 or 503,
	// typically with a headless browser.
	Fallback Fetcher
	Now      func() time.Time
}

// Analyzer runs probe, classification and product counting per site.
type Analyzer struct {
	prober     Fetcher
	classifier *Classifier
	counter    ProductCounter
	log        *log.Logger
	opts       AnalyzerOptions
}

func NewAnalyzer(prober Fetcher, classifier *Classifier, counter ProductCounter, logger *log.Logger, opts AnalyzerOptions) *Analyzer {
	if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Analyzer{prober: prober, classifier: classifier, counter: counter, log: logger, opts: opts}
}

// AnalyzeBatch analyzes urls with at most maxConcurrent sites in flight.
// The result has one entry per input url, in input order. Failed sites get
// Success false; a cancelled context marks the sites not yet analyzed as
// failed and still returns no error.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, urls []string, maxConcurrent int) ([]models.WebsiteAnalysis, error) {
	if maxConcurrent <= 0 || maxConcurrent > MaxConcurrentLimit {
		return nil, fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidConcurrency, maxConcurrent, MaxConcurrentLimit)
	}

	results := make([]models.WebsiteAnalysis, len(urls))
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrent)

	for i, u := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = a.cancelled(u)
				return nil
			}
			results[i] = a.Analyze(ctx, u)
			progress.Report(ctx, fmt.Sprintf("analyzed %s", u))
			return nil
		})
	}
	_ = g.Wait()

	a.log.Info("website batch complete", "sites", len(urls), "failed", models.FailedCount(results))
	return results, nil
}

// Analyze runs the full pipeline for one site. It always returns a record;
// failures are reported through Success and Error.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) models.WebsiteAnalysis {
	out := models.WebsiteAnalysis{
		ID:  uuid.NewString(),
		URL: rawURL,
	}

	outcome := a.probe(ctx, rawURL)
	if ctx.Err() != nil {
		return a.cancelled(rawURL)
	}
	out.FinalURL = outcome.FinalURL
	out.StatusCode = outcome.StatusCode

	if outcome.Err != nil {
		out.Error = outcome.Err.Error()
		out.AnalyzedAt = a.opts.Now()
		a.log.Warn("site unreachable", "url", rawURL, "err", outcome.Err)
		return out
	}
	if outcome.StatusCode >= 400 {
		out.Error = fmt.Sprintf("http status %d", outcome.StatusCode)
		out.AnalyzedAt = a.opts.Now()
		a.log.Warn("site answered with error status", "url", rawURL, "status", outcome.StatusCode)
		return out
	}

	c := a.classifier.Classify(outcome)
	out.Success = true
	out.Platform = c.Platform
	out.Theme = c.Theme
	out.PaymentMethods = c.PaymentMethods
	out.Currency = c.Currency
	out.Category = c.Category
	out.ProductTypes = c.ProductTypes
	out.Title = c.Title
	out.Description = c.Description

	if a.counter != nil {
		base := outcome.FinalURL
		if base == "" {
			base = outcome.RequestURL
		}
		if n, found := a.counter.CountProducts(ctx, Origin(base)); found {
			out.ProductCount = &n
		}
	}
	// a walk cut short by cancellation would under-report the catalog
	if ctx.Err() != nil {
		return a.cancelled(rawURL)
	}

	out.AnalyzedAt = a.opts.Now()
	a.log.Debug("site analyzed", "url", rawURL, "platform", out.Platform, "theme", out.Theme)
	return out
}

func (a *Analyzer) probe(ctx context.Context, rawURL string) FetchOutcome {
	var outcome FetchOutcome
	for attempt := 0; attempt <= a.opts.Retries; attempt++ {
		if attempt > 0 {
			a.log.Debug("retrying site", "url", rawURL, "attempt", attempt, "err", outcome.Err)
			select {
			case <-ctx.Done():
				return outcome
			case <-time.After(a.opts.RetryBackoff * time.Duration(attempt)):
			}
		}
		outcome = a.prober.Probe(ctx, rawURL)
		if !retryable(ctx, outcome.Err) {
			break
		}
	}

	if a.opts.Fallback != nil && blocked(outcome.StatusCode) {
		a.log.Debug("site blocked plain fetch, using fallback", "url", rawURL, "status", outcome.StatusCode)
		if fb := a.opts.Fallback.Probe(ctx, rawURL); fb.OK() {
			return fb
		}
	}
	return outcome
}

func retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrTooManyRedirects) && !errors.Is(err, ErrInvalidURL)
}

func blocked(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func (a *Analyzer) cancelled(rawURL string) models.WebsiteAnalysis {
	return models.WebsiteAnalysis{
		ID:         uuid.NewString(),
		URL:        rawURL,
		Error:      "cancelled",
		Cancelled:  true,
		AnalyzedAt: a.opts.Now(),
	}
}
