package pipeline

import (
	"context"
	"time"
)

// Fetcher performs one bounded-time GET and classifies the outcome.
// Implementations never panic; every outcome is an Attempt value.
type Fetcher interface {
	Fetch(ctx context.Context, link string) Attempt
}

// Extractor turns raw markup into readable article text. The boolean is
// false when no recognizable article structure was found.
type Extractor interface {
	Extract(markup []byte) (string, bool)
}

// Hasher computes the stable identity digest for a link.
type Hasher interface {
	Hash(link string) string
}

// Collector is the single synchronized entry point into the result set.
// Add returns an error on a duplicate hash, which is an invariant
// violation rather than a recoverable condition.
type Collector interface {
	Add(result FetchResult) error
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}
