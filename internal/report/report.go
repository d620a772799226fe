// Package report accumulates non-fatal issues during a run and emits an
// end-of-run summary instead of halting progress.
package report

import (
	"log/slog"
	"sort"
	"sync"
)

// Item is one recorded issue.
type Item struct {
	Kind    error
	PageID  string
	BlockID string
	Detail  string
}

// Collector is a concurrency-safe accumulator of recovered issues.
type Collector struct {
	mu    sync.Mutex
	items []Item
}

// New returns an empty collector.
func New() *Collector {
	return &Collector{}
}

// Add records one issue. kind should be a sentinel from apperr.
func (c *Collector) Add(kind error, pageID, blockID, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, Item{Kind: kind, PageID: pageID, BlockID: blockID, Detail: detail})
}

// Total returns the number of recorded issues.
func (c *Collector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Counts returns issue counts keyed by kind.
func (c *Collector) Counts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int)
	for _, it := range c.items {
		out[it.Kind.Error()]++
	}
	return out
}

// Items returns a snapshot of every recorded issue.
func (c *Collector) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Log writes the end-of-run summary: one line per kind with its count,
// in stable order.
func (c *Collector) Log(logger *slog.Logger) {
	counts := c.Counts()
	if len(counts) == 0 {
		return
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		logger.Warn("run completed with warnings",
			slog.String("kind", k),
			slog.Int("count", counts[k]))
	}
}
