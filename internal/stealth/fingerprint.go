package stealth

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Fingerprint represents a browser identity with matching UA and headers.
type Fingerprint struct {
	UserAgent string
	Headers   http.Header
}

// FingerprintPool rotates through a set of browser fingerprints.
type FingerprintPool struct {
	fingerprints []Fingerprint
	mu           sync.Mutex
	idx          int
}

type browserIdentity struct {
	family   string // chrome, firefox
	platform string // Sec-Ch-Ua-Platform value
	ua       string
}

var desktopIdentities = []browserIdentity{
	{"chrome", "Windows", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"},
	{"chrome", "macOS", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"},
	{"chrome", "Linux", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"},
	{"firefox", "Windows", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0"},
	{"firefox", "macOS", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:135.0) Gecko/20100101 Firefox/135.0"},
	{"chrome", "Windows", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36 Edg/133.0.0.0"},
}

// NewFingerprintPool creates a pool of desktop browser fingerprints whose
// Accept-Language prefers the given languages (ISO 639-1, in order). With
// no languages the headers advertise English only.
func NewFingerprintPool(languages ...string) *FingerprintPool {
	acceptLang := AcceptLanguage(languages)
	fps := make([]Fingerprint, 0, len(desktopIdentities))
	for _, id := range desktopIdentities {
		var h http.Header
		if id.family == "firefox" {
			h = firefoxHeaders()
		} else {
			h = chromeHeaders("133", id.platform)
		}
		h.Set("Accept-Language", acceptLang)
		fps = append(fps, Fingerprint{UserAgent: id.ua, Headers: h})
	}
	return &FingerprintPool{fingerprints: fps}
}

// Next returns the next fingerprint in round-robin order.
func (fp *FingerprintPool) Next() Fingerprint {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	f := fp.fingerprints[fp.idx%len(fp.fingerprints)]
	fp.idx++
	return f
}

// AcceptLanguage builds a weighted Accept-Language value, e.g.
// ["fr", "de"] → "fr-FR,fr;q=0.9,de;q=0.8,en;q=0.7".
func AcceptLanguage(languages []string) string {
	var parts []string
	seen := map[string]bool{}
	q := 10
	add := func(tag string) {
		if seen[tag] {
			return
		}
		seen[tag] = true
		if q == 10 {
			parts = append(parts, tag)
		} else {
			parts = append(parts, fmt.Sprintf("%s;q=0.%d", tag, q))
		}
		if q > 1 {
			q--
		}
	}
	for i, lang := range languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		if i == 0 && len(lang) == 2 {
			add(lang + "-" + strings.ToUpper(lang))
		}
		add(lang)
	}
	if len(parts) == 0 {
		add("en-US")
	}
	add("en")
	return strings.Join(parts, ",")
}

func chromeHeaders(version, platform string) http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Sec-Ch-Ua", `"Chromium";v="`+version+`", "Not(A:Brand";v="99", "Google Chrome";v="`+version+`"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"`+platform+`"`)
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

func firefoxHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}
