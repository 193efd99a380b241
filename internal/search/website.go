package search

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/lukman83/adscout/internal/models"
)

var (
	domainRe     = regexp.MustCompile(`^[a-z0-9][-a-z0-9]*(?:\.[a-z0-9][-a-z0-9]*)*\.[a-z]{2,}$`)
	domainInText = regexp.MustCompile(`(?:https?://)?(?:www\.)?([a-z0-9][-a-z0-9]*(?:\.[a-z0-9][-a-z0-9]*)*\.[a-z]{2,})(?:/|\b)`)
)

// socialDomains never identify an advertiser's store.
var socialDomains = map[string]bool{
	"facebook.com":  true,
	"fb.com":        true,
	"fb.me":         true,
	"instagram.com": true,
	"messenger.com": true,
	"whatsapp.com":  true,
	"wa.me":         true,
	"m.me":          true,
}

// WebsiteFromAds picks the domain most often advertised in link captions
// and titles. Ties go to the lexicographically smallest domain. The result
// carries an https scheme, or is empty when no domain was found.
func WebsiteFromAds(ads []models.Ad) string {
	counts := map[string]int{}
	for _, ad := range ads {
		seen := map[string]bool{}
		for _, s := range ad.LinkCaptions {
			if d := domainOf(s); d != "" && !seen[d] {
				seen[d] = true
				counts[d]++
			}
		}
		for _, s := range ad.LinkTitles {
			if d := domainOf(s); d != "" && !seen[d] {
				seen[d] = true
				counts[d]++
			}
		}
	}

	best, bestN := "", 0
	for d, n := range counts {
		if n > bestN || (n == bestN && d < best) {
			best, bestN = d, n
		}
	}
	if best == "" {
		return ""
	}
	return "https://" + best
}

func domainOf(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var host string
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		host = u.Hostname()
	} else if domainRe.MatchString(s) {
		host = s
	} else if m := domainInText.FindStringSubmatch(s); m != nil {
		host = m[1]
	}

	host = strings.TrimPrefix(host, "www.")
	if !domainRe.MatchString(host) {
		return ""
	}
	for social := range socialDomains {
		if host == social || strings.HasSuffix(host, "."+social) {
			return ""
		}
	}
	return host
}
