package website

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Classification is what the classifier could infer from one fetched page.
// Empty strings mean "not detected".
type Classification struct {
	Platform       string   `json:"platform,omitempty"`
	Theme          string   `json:"theme,omitempty"`
	PaymentMethods []string `json:"payment_methods,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	Category       string   `json:"category,omitempty"`
	ProductTypes   []string `json:"product_types,omitempty"`
	Title          string   `json:"title,omitempty"`
	Description    string   `json:"description,omitempty"`
	Evidence       []string `json:"evidence,omitempty"`
}

const maxTextBytes = 400_000

var (
	shopifyThemePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Shopify\.theme\s*=\s*{[^}]*?\bname\s*:\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?is)Shopify\.theme\s*=\s*{[^}]*?"name"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(?i)Shopify\.theme\.name\s*=\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?i)data-theme-name\s*=\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?i)theme_name\s*[:=]\s*["']([^"']+)["']`),
	}
	shopifyThemeID   = regexp.MustCompile(`(?i)/cdn/shop/t/(\d+)/`)
	genericThemeName = regexp.MustCompile(`(?i)\btheme[_-]?t?_\d+\b`)
	wpTheme          = regexp.MustCompile(`(?i)/wp-content/themes/([a-z0-9_.-]+)/`)
	prestaTheme      = regexp.MustCompile(`(?i)/themes/([a-z0-9_.-]+)/(?:assets|css|js)/`)
	magentoTheme     = regexp.MustCompile(`/static/(?:version\d+/)?frontend/([A-Za-z0-9_-]+/[A-Za-z0-9_-]+)/`)

	shopifyCurrency = regexp.MustCompile(`Shopify\.currency\s*=\s*{[^}]*"active"\s*:\s*"([A-Z]{3})"`)
	ogCurrency      = regexp.MustCompile(`(?i)property=["'](?:og|product):price:currency["']\s+content=["']([A-Za-z]{3})["']`)
)

// Classifier identifies the platform, theme and payment integrations of a
// fetched page. It holds no per-call state and is safe for concurrent use.
type Classifier struct {
	signatures []Signature
	payments   []PaymentMethod
	htmlSet    *markerSet
	paySet     *markerSet
	taxonomy   *Taxonomy
}

func NewClassifier(signatures []Signature, payments []PaymentMethod, taxonomy *Taxonomy) *Classifier {
	var htmlPatterns []string
	for _, s := range signatures {
		for _, mk := range s.HTML {
			htmlPatterns = append(htmlPatterns, mk.Pattern)
		}
	}

	var payPatterns []string
	words := map[string]bool{}
	for _, p := range payments {
		payPatterns = append(payPatterns, p.Markers...)
		for _, w := range p.Words {
			payPatterns = append(payPatterns, w)
			words[w] = true
		}
	}

	return &Classifier{
		signatures: signatures,
		payments:   payments,
		htmlSet:    newMarkerSet(htmlPatterns, nil),
		paySet:     newMarkerSet(payPatterns, func(p string) bool { return words[p] }),
		taxonomy:   taxonomy,
	}
}

// DefaultClassifier uses the built-in signature, payment and taxonomy tables.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultSignatures, DefaultPayments, NewTaxonomy(DefaultTaxonomy))
}

func (c *Classifier) Classify(o FetchOutcome) Classification {
	var out Classification
	if len(o.Body) == 0 {
		return out
	}
	lower := bytes.ToLower(o.Body)

	out.Platform, out.Evidence = c.detectPlatform(lower, o)
	out.Theme = detectTheme(out.Platform, string(o.Body))
	out.PaymentMethods = c.detectPayments(lower)
	out.Currency = detectCurrency(o.Body)

	doc, err := parseDocument(o.Body)
	if err != nil {
		return out
	}
	out.Title, out.Description = metadata(doc)
	if c.taxonomy != nil {
		text := visibleText(doc)
		out.Category, out.ProductTypes = c.taxonomy.Classify(out.Title + " " + out.Description + " " + text)
	}
	return out
}

func (c *Classifier) detectPlatform(lower []byte, o FetchOutcome) (string, []string) {
	found := c.htmlSet.find(lower)
	cookies := cookieNames(o)

	for _, sig := range c.signatures {
		score := 0
		var evidence []string
		for _, mk := range sig.HTML {
			if found[mk.Pattern] {
				score += mk.Weight
				evidence = append(evidence, "html:"+mk.Pattern)
			}
		}
		for _, hm := range sig.Headers {
			v, ok := headerValue(o, hm.Name)
			if ok && (hm.Contains == "" || strings.Contains(strings.ToLower(v), hm.Contains)) {
				score += hm.Weight
				evidence = append(evidence, "header:"+hm.Name)
			}
		}
		for _, mk := range sig.Cookies {
			if cookies[mk.Pattern] || cookiePrefix(cookies, mk.Pattern) {
				score += mk.Weight
				evidence = append(evidence, "cookie:"+mk.Pattern)
			}
		}
		if score > 0 && score >= sig.MinScore {
			return sig.Platform, evidence
		}
	}
	return "", nil
}

func headerValue(o FetchOutcome, name string) (string, bool) {
	if o.Headers == nil {
		return "", false
	}
	vals := o.Headers.Values(name)
	if len(vals) == 0 {
		return "", false
	}
	return strings.Join(vals, ","), true
}

func cookieNames(o FetchOutcome) map[string]bool {
	names := map[string]bool{}
	for _, n := range o.Cookies {
		names[strings.ToLower(n)] = true
	}
	return names
}

// cookiePrefix matches markers ending in "-" against cookie name prefixes.
func cookiePrefix(cookies map[string]bool, pattern string) bool {
	if !strings.HasSuffix(pattern, "-") {
		return false
	}
	for name := range cookies {
		if strings.HasPrefix(name, pattern) {
			return true
		}
	}
	return false
}

func (c *Classifier) detectPayments(lower []byte) []string {
	found := c.paySet.find(lower)
	var ids []string
	for _, p := range c.payments {
		hit := false
		for _, mk := range p.Markers {
			hit = hit || found[mk]
		}
		for _, w := range p.Words {
			hit = hit || found[w]
		}
		if hit {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func detectTheme(platform, body string) string {
	switch platform {
	case "Shopify":
		for _, re := range shopifyThemePatterns {
			if m := re.FindStringSubmatch(body); m != nil {
				if name := cleanTheme(m[1]); name != "" {
					return name
				}
			}
		}
		if m := shopifyThemeID.FindStringSubmatch(body); m != nil {
			return "theme_t_" + m[1]
		}
	case "WooCommerce", "WordPress":
		if m := wpTheme.FindStringSubmatch(body); m != nil {
			return cleanTheme(m[1])
		}
	case "PrestaShop":
		if m := prestaTheme.FindStringSubmatch(body); m != nil {
			return cleanTheme(m[1])
		}
	case "Magento":
		if m := magentoTheme.FindStringSubmatch(body); m != nil {
			return cleanTheme(m[1])
		}
	}
	return ""
}

// cleanTheme trims decoration around a theme name and rejects placeholder
// names such as "theme_t_123".
func cleanTheme(name string) string {
	n := strings.Trim(html.UnescapeString(name), "/*-:=> \t\"'")
	if len(n) < 2 || len(n) > 120 {
		return ""
	}
	if genericThemeName.MatchString(n) {
		return ""
	}
	return n
}

func detectCurrency(body []byte) string {
	if m := shopifyCurrency.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	if m := ogCurrency.FindSubmatch(body); m != nil {
		return strings.ToUpper(string(m[1]))
	}
	return ""
}

func parseDocument(body []byte) (*goquery.Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

func metadata(doc *goquery.Document) (string, string) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	}
	desc, ok := doc.Find(`meta[name="description"]`).Attr("content")
	if !ok || strings.TrimSpace(desc) == "" {
		desc, _ = doc.Find(`meta[property="og:description"]`).Attr("content")
	}
	return collapse(title), collapse(desc)
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, svg, template").Remove()
	var b strings.Builder
	b.WriteString(body.Text())
	body.Find("img[alt]").Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")
		b.WriteString(" ")
		b.WriteString(alt)
	})
	text := collapse(b.String())
	if len(text) > maxTextBytes {
		text = text[:maxTextBytes]
	}
	return text
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
