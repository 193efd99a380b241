package adsource

import (
	"context"
	"iter"
	"strings"
)

// RawAd is one ad payload as returned by the provider, before normalization.
type RawAd map[string]any

// Query selects one page of ads for a keyword, or for every ad of the given
// advertiser pages when PageIDs is set. Keyword may be empty in that case.
type Query struct {
	Keyword   string
	PageIDs   []string
	Countries []string
	Languages []string
	Cursor    string
}

// Label names the query in logs and errors.
func (q Query) Label() string {
	if len(q.PageIDs) > 0 && q.Keyword == "" {
		return "pages " + strings.Join(q.PageIDs, ",")
	}
	return q.Keyword
}

// Page is one page of results. An empty Next means the sequence is exhausted.
type Page struct {
	Ads  []RawAd
	Next string
}

// Source is a paged ad-search capability.
type Source interface {
	Name() string
	Query(ctx context.Context, q Query) (Page, error)
}

// Pages lazily walks every page of q, following cursors until the source
// reports no next cursor. Iteration stops after the first error, which is
// yielded with an empty page.
func Pages(ctx context.Context, src Source, q Query) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		seen := map[string]bool{}
		for {
			if err := ctx.Err(); err != nil {
				yield(Page{}, err)
				return
			}
			p, err := src.Query(ctx, q)
			if err != nil {
				yield(Page{}, err)
				return
			}
			if !yield(p, nil) {
				return
			}
			// a cursor seen twice would loop forever
			if p.Next == "" || seen[p.Next] {
				return
			}
			seen[p.Next] = true
			q.Cursor = p.Next
		}
	}
}
