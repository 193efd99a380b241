package adsource

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

// Memory is an in-process Source serving canned ads per keyword, split into
// pages of PageSize. Page id queries see every added ad of those pages,
// whatever keyword it was added under. Errors can be injected per keyword
// (or page) and cursor.
type Memory struct {
	PageSize int

	mu    sync.Mutex
	ads   map[string][]RawAd
	added []RawAd
	errs  map[string]error
	calls atomic.Int64
	gate  chan struct{}
	gated map[string]bool
}

func NewMemory(pageSize int) *Memory {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Memory{
		PageSize: pageSize,
		ads:      make(map[string][]RawAd),
		errs:     make(map[string]error),
		gated:    make(map[string]bool),
	}
}

func (m *Memory) Name() string { return "memory" }

// Add appends ads returned for keyword.
func (m *Memory) Add(keyword string, ads ...RawAd) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ads[keyword] = append(m.ads[keyword], ads...)
	m.added = append(m.added, ads...)
}

// AddToPage registers ads only reachable through a page id query, such as
// a page's ads that match none of the searched keywords.
func (m *Memory) AddToPage(ads ...RawAd) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, ads...)
}

// FailAt makes the query for keyword at the given cursor return err.
// The first page has cursor "".
func (m *Memory) FailAt(keyword, cursor string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[keyword+"\x00"+cursor] = err
}

// FailPage makes every page id query including pageID return err.
func (m *Memory) FailPage(pageID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs["\x01"+pageID] = err
}

// Block makes queries for keyword wait until Release is called or the
// context is done.
func (m *Memory) Block(keyword string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate == nil {
		m.gate = make(chan struct{})
	}
	m.gated[keyword] = true
}

func (m *Memory) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Calls returns the number of Query invocations so far.
func (m *Memory) Calls() int { return int(m.calls.Load()) }

func (m *Memory) Query(ctx context.Context, q Query) (Page, error) {
	m.calls.Add(1)

	m.mu.Lock()
	gate := m.gate
	blocked := m.gated[q.Keyword]
	err := m.errs[q.Keyword+"\x00"+q.Cursor]
	all := m.ads[q.Keyword]
	if len(q.PageIDs) > 0 {
		all = m.pageAds(q.PageIDs)
		for _, id := range q.PageIDs {
			if e := m.errs["\x01"+id]; e != nil {
				err = e
			}
		}
	}
	m.mu.Unlock()

	if blocked && gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Page{}, ctx.Err()
		}
	}
	if err != nil {
		return Page{}, err
	}

	start := 0
	if q.Cursor != "" {
		n, convErr := strconv.Atoi(q.Cursor)
		if convErr != nil {
			return Page{}, convErr
		}
		start = n
	}
	if start > len(all) {
		start = len(all)
	}
	end := min(start+m.PageSize, len(all))

	p := Page{Ads: append([]RawAd(nil), all[start:end]...)}
	if end < len(all) {
		p.Next = strconv.Itoa(end)
	}
	return p, nil
}

// pageAds must be called with mu held. Ads added twice are served once.
func (m *Memory) pageAds(pageIDs []string) []RawAd {
	want := make(map[string]bool, len(pageIDs))
	for _, id := range pageIDs {
		want[id] = true
	}
	seen := map[any]bool{}
	var out []RawAd
	for _, ad := range m.added {
		pid, _ := ad["page_id"].(string)
		if !want[pid] || seen[ad["id"]] {
			continue
		}
		seen[ad["id"]] = true
		out = append(out, ad)
	}
	return out
}
