package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/lukman83/adscout/internal/export"
	"github.com/lukman83/adscout/internal/models"
)

// output renders v as json, a table, or an xlsx workbook written to path.
type output struct {
	format string
	path   string
}

func (o output) emit(v any, table func(w io.Writer), wb export.Workbook) error {
	switch o.format {
	case "table":
		table(os.Stdout)
		return nil
	case "xlsx":
		if o.path == "" {
			return fmt.Errorf("--out is required for xlsx output")
		}
		if err := wb.WriteFile(o.path); err != nil {
			return err
		}
		logger.Info("workbook written", "path", o.path)
		return nil
	case "json", "":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown format %q (json, table, xlsx)", o.format)
	}
}

// printPagesTable prints pages in a human-friendly card layout.
func printPagesTable(w io.Writer, pages []models.Page) {
	if len(pages) == 0 {
		fmt.Fprintln(w, "No pages found.")
		return
	}
	for i, p := range pages {
		if i > 0 {
			fmt.Fprintln(w)
		}
		name := p.Name
		if name == "" {
			name = p.ID
		}
		if p.Flags.Favorite {
			name = "★ " + name
		}
		fmt.Fprintf(w, " %d. %s\n", i+1, truncate(name, 60))

		line := fmt.Sprintf("    Ads: %d  |  Bucket: %s", p.AdCount(), bucketLabel(p.Bucket))
		if p.ActiveAds != nil {
			line = fmt.Sprintf("    Ads: %d (%d active)  |  Bucket: %s", p.AdCount(), *p.ActiveAds, bucketLabel(p.Bucket))
		}
		if p.Currency != "" {
			line += "  |  " + p.Currency
		}
		fmt.Fprintln(w, line)

		if len(p.Keywords) > 0 {
			fmt.Fprintf(w, "    Keywords: %s\n", strings.Join(p.Keywords, ", "))
		}
		if p.WebsiteURL != "" {
			fmt.Fprintf(w, "    %s\n", cleanURL(p.WebsiteURL))
		}
		fmt.Fprintf(w, "    https://www.facebook.com/%s\n", p.ID)
	}
}

func printSearchSummary(w io.Writer, r *models.SearchResult) {
	fmt.Fprintf(w, "%d unique ads (%d total) across %d pages in %s\n",
		r.UniqueAds, r.TotalAds, r.PageCount, r.Duration.Round(time.Millisecond))
	for _, kw := range r.Keywords {
		fmt.Fprintf(w, "  %-30s %d ads\n", truncate(kw, 30), r.KeywordStats[kw])
	}
	if r.Rejected > 0 || r.FailedQueries > 0 {
		fmt.Fprintf(w, "  (%d malformed ads, %d failed queries)\n", r.Rejected, r.FailedQueries)
	}
	if r.Partial {
		fmt.Fprintln(w, "  search was interrupted, results are partial")
	}
	fmt.Fprintln(w)
}

func printWinningTable(w io.Writer, winners []models.WinningAd) {
	if len(winners) == 0 {
		fmt.Fprintln(w, "No winning ads.")
		return
	}
	for i, wa := range winners {
		fmt.Fprintf(w, " %2d. %-40s  %9s reach  %3d days  [%s]\n",
			i+1, truncate(wa.Ad.PageName, 40), formatReach(wa.Reach), wa.AgeDays, wa.Tier.Label())
		if wa.Ad.SnapshotURL != "" {
			fmt.Fprintf(w, "     %s\n", wa.Ad.SnapshotURL)
		}
	}
}

func printAnalysesTable(w io.Writer, analyses []models.WebsiteAnalysis) {
	for i, a := range analyses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, " %d. %s\n", i+1, cleanURL(a.URL))
		if !a.Success {
			fmt.Fprintf(w, "    failed: %s\n", a.Error)
			continue
		}

		platform := a.Platform
		if platform == "" {
			platform = "unknown"
		}
		line := "    Platform: " + platform
		if a.Theme != "" {
			line += fmt.Sprintf(" (%s)", a.Theme)
		}
		if a.ProductCount != nil {
			line += fmt.Sprintf("  |  Products: %d", *a.ProductCount)
		} else {
			line += "  |  Products: no sitemap"
		}
		if a.Currency != "" {
			line += "  |  " + a.Currency
		}
		fmt.Fprintln(w, line)

		if len(a.PaymentMethods) > 0 {
			fmt.Fprintf(w, "    Payments: %s\n", strings.Join(a.PaymentMethods, ", "))
		}
		if a.Category != "" {
			fmt.Fprintf(w, "    Category: %s", a.Category)
			if len(a.ProductTypes) > 0 {
				fmt.Fprintf(w, " > %s", strings.Join(a.ProductTypes, ", "))
			}
			fmt.Fprintln(w)
		}
		if a.Title != "" {
			fmt.Fprintf(w, "    %s\n", truncate(a.Title, 80))
		}
	}
	if failed := models.FailedCount(analyses); failed > 0 {
		fmt.Fprintf(w, "\n%d of %d sites could not be analyzed\n", failed, len(analyses))
	}
}

func bucketLabel(b models.SizeBucket) string {
	if b == models.BucketNone {
		return "-"
	}
	return b.String()
}

// formatReach formats reach as "1.2M", "45k" or "950".
func formatReach(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%dk", n/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// cleanURL strips tracking query params (utm_*, fbclid, etc.)
// and returns just the page URL.
func cleanURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
