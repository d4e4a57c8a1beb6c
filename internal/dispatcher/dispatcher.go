// Package dispatcher fans work items out to a bounded worker pool.
package dispatcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sciencewire/article-harvester/internal/pipeline"
)

// DefaultConcurrency bounds simultaneous fetches when the config does
// not say otherwise.
const DefaultConcurrency = 12

// Processor drives one work item to a terminal result.
type Processor interface {
	Process(ctx context.Context, item pipeline.WorkItem) pipeline.FetchResult
}

// Dispatcher drains a work item list through at most C concurrent
// Processor invocations and reports every terminal result to the
// collector exactly once.
type Dispatcher struct {
	processor   Processor
	collector   pipeline.Collector
	concurrency int
	logger      *zap.Logger
}

// New creates a Dispatcher. Non-positive concurrency falls back to
// DefaultConcurrency.
func New(processor Processor, collector pipeline.Collector, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Dispatcher{
		processor:   processor,
		collector:   collector,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run blocks until every dispatched item has reported a terminal result
// to the collector. Context cancellation stops dispatch of new items;
// in-flight items finish (or time out) and are still recorded. The
// returned error is non-nil only for collector invariant violations.
func (d *Dispatcher) Run(ctx context.Context, items []pipeline.WorkItem) error {
	work := make(chan pipeline.WorkItem)
	go func() {
		defer close(work)
		for _, item := range items {
			select {
			case <-ctx.Done():
				d.logger.Info("dispatch stopped by cancellation",
					zap.Int("remaining", len(items)-item.Index),
				)
				return
			case work <- item:
			}
		}
	}()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				result := d.processor.Process(ctx, item)
				if err := d.collector.Add(result); err != nil {
					d.logger.Error("result rejected by aggregator",
						zap.String("link_hash", item.LinkHash),
						zap.Error(err),
					)
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}
