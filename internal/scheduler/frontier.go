// Package scheduler drives the breadth-first crawl loop over a FIFO frontier.
package scheduler

import "github.com/JakeFAU/topic-crawler/internal/crawler"

// Frontier is the FIFO work list plus the set of URLs already admitted.
// It is owned by a single crawl goroutine and is not safe for concurrent use.
type Frontier struct {
	entries []crawler.FrontierEntry
	head    int
	visited map[string]struct{}
}

// NewFrontier seeds a frontier with start URLs at depth zero.
func NewFrontier(start ...string) *Frontier {
	f := &Frontier{visited: make(map[string]struct{})}
	for _, u := range start {
		f.Push(crawler.FrontierEntry{URL: u})
	}
	return f
}

// Push appends entry to the tail.
func (f *Frontier) Push(entry crawler.FrontierEntry) {
	f.entries = append(f.entries, entry)
}

// Pop removes the head entry.
func (f *Frontier) Pop() (crawler.FrontierEntry, bool) {
	if f.head >= len(f.entries) {
		return crawler.FrontierEntry{}, false
	}
	entry := f.entries[f.head]
	f.entries[f.head] = crawler.FrontierEntry{}
	f.head++
	if f.head > 64 && f.head*2 >= len(f.entries) {
		f.entries = append([]crawler.FrontierEntry(nil), f.entries[f.head:]...)
		f.head = 0
	}
	return entry, true
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	return len(f.entries) - f.head
}

// Visit marks the entry's URL visited and reports whether it should be
// fetched. Soft-block retries are always admitted.
func (f *Frontier) Visit(entry crawler.FrontierEntry) bool {
	if entry.IsRetry() {
		return true
	}
	if _, ok := f.visited[entry.URL]; ok {
		return false
	}
	f.visited[entry.URL] = struct{}{}
	return true
}

// Visited reports whether url has been admitted before.
func (f *Frontier) Visited(url string) bool {
	_, ok := f.visited[url]
	return ok
}

// VisitedCount returns the size of the visited set.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}
