package normalize

import (
	"sort"
	"sync"
)

// ResultSet is the per-run result mapping, keyed by page id. Safe for the
// concurrent page fan-out; no cross-page ordering is guaranteed.
type ResultSet struct {
	mu      sync.Mutex
	results map[string]*Result
}

// NewResultSet creates an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{results: make(map[string]*Result)}
}

// Add stores a page result, replacing any previous entry for the same id.
func (rs *ResultSet) Add(r *Result) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.results[r.PageID] = r
}

// Get returns the result for a page id, or nil when the page failed or was
// skipped.
func (rs *ResultSet) Get(pageID string) *Result {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.results[pageID]
}

// Len reports the number of completed pages.
func (rs *ResultSet) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.results)
}

// PageIDs returns the completed page ids in sorted order, for stable
// reporting.
func (rs *ResultSet) PageIDs() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	ids := make([]string, 0, len(rs.results))
	for id := range rs.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
