package website

import (
	"regexp"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// markerSet finds which of a fixed list of lowercase patterns occur in a
// text, in a single Aho-Corasick pass. Patterns flagged as words must also
// match on word boundaries, so "visa" does not fire on "visage".
type markerSet struct {
	patterns []string
	words    map[int]*regexp.Regexp
	matcher  *ahocorasick.Matcher
}

func newMarkerSet(patterns []string, isWord func(string) bool) *markerSet {
	seen := map[string]bool{}
	m := &markerSet{words: map[int]*regexp.Regexp{}}
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if isWord != nil && isWord(p) {
			m.words[len(m.patterns)] = regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)
		}
		m.patterns = append(m.patterns, p)
	}
	if len(m.patterns) > 0 {
		m.matcher = ahocorasick.NewStringMatcher(m.patterns)
	}
	return m
}

// find returns the set of patterns present in text. text must already be
// lowercased the same way as the patterns.
func (m *markerSet) find(text []byte) map[string]bool {
	found := map[string]bool{}
	if m.matcher == nil || len(text) == 0 {
		return found
	}
	for _, idx := range m.matcher.MatchThreadSafe(text) {
		if idx < 0 || idx >= len(m.patterns) {
			continue
		}
		if re, ok := m.words[idx]; ok && !re.Match(text) {
			continue
		}
		found[m.patterns[idx]] = true
	}
	return found
}
