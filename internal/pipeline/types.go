// Package pipeline defines core types shared across the harvest subsystems.
package pipeline

import "time"

// Status is the terminal classification of one work item.
type Status string

// Status values written to the content set.
const (
	StatusOK        Status = "ok"
	StatusTransient Status = "transient_error"
	StatusPermanent Status = "permanent_error"
)

// Class categorizes a single fetch attempt so the retry controller can
// branch without inspecting errors.
type Class int

// Attempt classifications.
const (
	ClassOK Class = iota
	ClassTransient
	ClassPermanent
)

// WorkItem is one URL to harvest. Index preserves dispatch order so the
// final snapshots are deterministic regardless of completion order.
type WorkItem struct {
	Index    int    `json:"-"`
	Link     string `json:"link"`
	LinkHash string `json:"link_hash"`
}

// Attempt is the outcome of a single HTTP GET.
type Attempt struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Err        error
	Class      Class
}

// FetchResult is the terminal record for one work item. It is immutable
// once handed to the aggregator.
type FetchResult struct {
	Item        WorkItem
	Status      Status
	Content     string
	ErrorDetail string
	Attempts    int
	FetchedAt   time.Time
	Unparsable  bool
}

// Counts summarizes a finished run.
type Counts struct {
	OK         int
	Permanent  int
	Transient  int
	Unparsable int
}

// Total returns the number of recorded results.
func (c Counts) Total() int {
	return c.OK + c.Permanent + c.Transient
}
