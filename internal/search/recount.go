package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/models"
)

// PageAds fetches every active ad of one advertiser page, whatever keyword
// it matches, following cursors to the end. Malformed ads are skipped; any
// query failure or cancellation is returned as an error since a truncated
// total would be wrong.
func (a *Aggregator) PageAds(ctx context.Context, pageID string, countries, languages []string) ([]models.Ad, error) {
	q := adsource.Query{PageIDs: []string{pageID}, Countries: countries, Languages: languages}

	seen := map[string]bool{}
	var ads []models.Ad
	for page, err := range adsource.Pages(ctx, a.src, q) {
		if err != nil {
			return nil, fmt.Errorf("recount page %s: %w", pageID, err)
		}
		for _, raw := range page.Ads {
			ad, err := Normalize(raw)
			if err != nil {
				a.log.Debug("ad rejected", "page", pageID, "err", err)
				continue
			}
			// the archive may answer for several pages of one advertiser
			if ad.PageID != pageID || seen[ad.ID] {
				continue
			}
			seen[ad.ID] = true
			ads = append(ads, ad)
		}
	}
	return ads, nil
}

// DominantCurrency returns the most frequent currency among ads, upper
// cased. Ties go to the alphabetically first code.
func DominantCurrency(ads []models.Ad) string {
	counts := map[string]int{}
	for _, ad := range ads {
		if c := strings.ToUpper(strings.TrimSpace(ad.Currency)); c != "" {
			counts[c]++
		}
	}
	best, bestN := "", 0
	for c, n := range counts {
		if n > bestN || (n == bestN && c < best) {
			best, bestN = c, n
		}
	}
	return best
}
