package httputil

import "net/http"

// BrowserHeaders returns common browser-like headers.
func BrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	return h
}

// GraphAPIHeaders returns headers for Graph API calls.
func GraphAPIHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Accept-Encoding", "gzip")
	return h
}

// SitemapHeaders returns headers for sitemap and robots.txt fetches.
func SitemapHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/xml,text/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	return h
}

// Apply copies every header in src onto req without overwriting values
// already set.
func Apply(req *http.Request, src http.Header) {
	for k, vals := range src {
		if req.Header.Get(k) != "" {
			continue
		}
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}
