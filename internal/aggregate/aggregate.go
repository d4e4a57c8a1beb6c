// Package aggregate owns the run's result set.
package aggregate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sciencewire/article-harvester/internal/pipeline"
)

// Aggregator is the only component that mutates shared run state. All
// workers funnel their terminal results through Add; snapshots are read
// after the scheduler has drained.
type Aggregator struct {
	mu      sync.Mutex
	results map[string]pipeline.FetchResult
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{results: make(map[string]pipeline.FetchResult)}
}

// Add appends one terminal result. A second result for the same link
// hash means the scheduler dispatched an item twice, which is a logic
// error, not an operational one.
func (a *Aggregator) Add(result pipeline.FetchResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.results[result.Item.LinkHash]; exists {
		return fmt.Errorf("duplicate result for link hash %s", result.Item.LinkHash)
	}
	a.results[result.Item.LinkHash] = result
	return nil
}

// Len reports how many results have been recorded.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// All returns every result ordered by dispatch index.
func (a *Aggregator) All() []pipeline.FetchResult {
	return a.snapshot(func(pipeline.FetchResult) bool { return true })
}

// Successes returns the ok results ordered by dispatch index.
func (a *Aggregator) Successes() []pipeline.FetchResult {
	return a.snapshot(func(r pipeline.FetchResult) bool { return r.Status == pipeline.StatusOK })
}

// Failures returns the terminal failures ordered by dispatch index.
func (a *Aggregator) Failures() []pipeline.FetchResult {
	return a.snapshot(func(r pipeline.FetchResult) bool { return r.Status != pipeline.StatusOK })
}

// Counts partitions the result set for the final report.
func (a *Aggregator) Counts() pipeline.Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	var c pipeline.Counts
	for _, r := range a.results {
		switch r.Status {
		case pipeline.StatusOK:
			c.OK++
			if r.Unparsable {
				c.Unparsable++
			}
		case pipeline.StatusPermanent:
			c.Permanent++
		case pipeline.StatusTransient:
			c.Transient++
		}
	}
	return c
}

func (a *Aggregator) snapshot(keep func(pipeline.FetchResult) bool) []pipeline.FetchResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]pipeline.FetchResult, 0, len(a.results))
	for _, r := range a.results {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.Index < out[j].Item.Index })
	return out
}
