package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lukman83/adscout/internal/models"
)

// Memory is an in-process Store for tests and one-shot CLI runs.
type Memory struct {
	mu       sync.RWMutex
	pages    map[string]map[string]models.Page
	ads      map[string]map[string]models.Ad
	winners  map[string]map[string]models.WinningAd
	analyses map[string]map[string][]models.WebsiteAnalysis
}

func NewMemory() *Memory {
	return &Memory{
		pages:    map[string]map[string]models.Page{},
		ads:      map[string]map[string]models.Ad{},
		winners:  map[string]map[string]models.WinningAd{},
		analyses: map[string]map[string][]models.WebsiteAnalysis{},
	}
}

func scoped[V any](m map[string]map[string]V, scope string) map[string]V {
	inner, ok := m[scope]
	if !ok {
		inner = map[string]V{}
		m[scope] = inner
	}
	return inner
}

func (m *Memory) SavePages(_ context.Context, scope string, pages []models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := scoped(m.pages, scope)
	for _, p := range pages {
		if old, ok := stored[p.ID]; ok {
			p.Flags = old.Flags
			if p.WebsiteURL == "" {
				p.WebsiteURL = old.WebsiteURL
			}
			if p.ActiveAds == nil {
				p.ActiveAds = old.ActiveAds
			}
		}
		stored[p.ID] = p
	}
	return nil
}

func (m *Memory) FindPage(_ context.Context, scope, pageID string) (models.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[scope][pageID]
	if !ok {
		return models.Page{}, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) ListPages(_ context.Context, scope string, f PageFilter) ([]models.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Page
	for _, p := range m.pages[scope] {
		if matchesFilter(p, f) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AdCount() != out[j].AdCount() {
			return out[i].AdCount() > out[j].AdCount()
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) SetFlags(_ context.Context, scope, pageID string, flags models.PageFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := scoped(m.pages, scope)
	p, ok := stored[pageID]
	if !ok {
		p = models.Page{ID: pageID}
	}
	p.Flags = flags
	stored[pageID] = p
	return nil
}

func (m *Memory) ExcludedPageIDs(_ context.Context, scope string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]bool{}
	for id, p := range m.pages[scope] {
		if p.Flags.Blacklisted {
			out[id] = true
		}
	}
	return out, nil
}

func (m *Memory) SaveAds(_ context.Context, scope string, ads []models.Ad) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := scoped(m.ads, scope)
	for _, a := range ads {
		stored[a.ID] = a
	}
	return nil
}

func (m *Memory) FindAd(_ context.Context, scope, adID string) (models.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.ads[scope][adID]
	if !ok {
		return models.Ad{}, fmt.Errorf("ad %s: %w", adID, ErrNotFound)
	}
	return a, nil
}

func (m *Memory) AdsForPage(_ context.Context, scope, pageID string) ([]models.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Ad
	for _, a := range m.ads[scope] {
		if a.PageID == pageID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveWinningAds(_ context.Context, scope string, ads []models.WinningAd) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := scoped(m.winners, scope)
	for _, w := range ads {
		stored[w.Ad.ID] = w
	}
	return nil
}

func (m *Memory) ListWinningAds(_ context.Context, scope string, limit int) ([]models.WinningAd, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.WinningAd, 0, len(m.winners[scope]))
	for _, w := range m.winners[scope] {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reach != out[j].Reach {
			return out[i].Reach > out[j].Reach
		}
		return out[i].Ad.ID < out[j].Ad.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SaveAnalysis(_ context.Context, scope string, a models.WebsiteAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := scoped(m.analyses, scope)
	stored[a.URL] = append(stored[a.URL], a)
	return nil
}

func (m *Memory) LatestAnalysis(_ context.Context, scope, url string) (models.WebsiteAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.analyses[scope][url]
	if len(history) == 0 {
		return models.WebsiteAnalysis{}, fmt.Errorf("analysis of %s: %w", url, ErrNotFound)
	}
	return latest(history), nil
}

func (m *Memory) ListAnalyses(_ context.Context, scope string) ([]models.WebsiteAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.WebsiteAnalysis
	for _, history := range m.analyses[scope] {
		out = append(out, latest(history))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

// latest picks the most recent record; on equal timestamps the one saved
// last wins.
func latest(history []models.WebsiteAnalysis) models.WebsiteAnalysis {
	best := history[0]
	for _, a := range history[1:] {
		if !a.AnalyzedAt.Before(best.AnalyzedAt) {
			best = a
		}
	}
	return best
}

func (m *Memory) Close() error { return nil }
