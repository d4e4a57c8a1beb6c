// Package worker executes the per-item fetch/extract loop with retries.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sciencewire/article-harvester/internal/metrics"
	"github.com/sciencewire/article-harvester/internal/pipeline"
)

// state tracks one item through the retry machine.
type state int

const (
	statePending state = iota
	stateAttempting
	stateRetryWait
	stateSucceeded
	stateFailed
)

// Worker drives a single work item to a terminal FetchResult. It holds
// no mutable state of its own and is safe to share across goroutines.
type Worker struct {
	fetcher   pipeline.Fetcher
	extractor pipeline.Extractor
	policy    *pipeline.RetryPolicy
	clock     pipeline.Clock
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	fetcher pipeline.Fetcher,
	extractor pipeline.Extractor,
	policy *pipeline.RetryPolicy,
	clock pipeline.Clock,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		fetcher:   fetcher,
		extractor: extractor,
		policy:    policy,
		clock:     clock,
		logger:    logger,
	}
}

// Process fetches and extracts one item. It always returns a terminal
// result; failures are values, never panics. Cancellation mid-wait
// finishes the item as an exhausted transient failure so the aggregator
// still receives exactly one record.
func (w *Worker) Process(ctx context.Context, item pipeline.WorkItem) pipeline.FetchResult {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	var (
		attempts int
		last     pipeline.Attempt
	)
	for st := stateAttempting; st == stateAttempting; {
		attempts++
		last = w.fetcher.Fetch(ctx, item.Link)
		metrics.ObserveAttempt(className(last.Class), last.Duration)

		st = w.next(last.Class, attempts)
		if st != stateRetryWait {
			if st == stateSucceeded {
				return w.succeed(item, last, attempts)
			}
			break
		}

		metrics.ObserveRetry()
		backoff := w.policy.Backoff(attempts)
		w.logger.Debug("transient failure, backing off",
			zap.String("link", item.Link),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(last.Err),
		)
		if !w.wait(ctx, backoff) {
			break
		}
		st = stateAttempting
	}
	return w.fail(item, last, attempts)
}

// next is the transition function of the retry machine: pending and
// retry-wait both feed attempting, which resolves to succeeded, failed,
// or another retry-wait while budget remains.
func (w *Worker) next(class pipeline.Class, attempt int) state {
	switch class {
	case pipeline.ClassOK:
		return stateSucceeded
	case pipeline.ClassPermanent:
		return stateFailed
	default:
		if w.policy.ShouldRetry(class, attempt) {
			return stateRetryWait
		}
		return stateFailed
	}
}

func (w *Worker) succeed(item pipeline.WorkItem, attempt pipeline.Attempt, attempts int) pipeline.FetchResult {
	content, parsable := w.extractor.Extract(attempt.Body)
	if !parsable {
		w.logger.Info("page fetched but unparsable", zap.String("link", item.Link))
	}
	metrics.ObserveItem(string(pipeline.StatusOK))
	return pipeline.FetchResult{
		Item:       item,
		Status:     pipeline.StatusOK,
		Content:    content,
		Attempts:   attempts,
		FetchedAt:  w.clock.Now(),
		Unparsable: !parsable,
	}
}

func (w *Worker) fail(item pipeline.WorkItem, attempt pipeline.Attempt, attempts int) pipeline.FetchResult {
	status := pipeline.StatusTransient
	if attempt.Class == pipeline.ClassPermanent {
		status = pipeline.StatusPermanent
	}
	detail := ""
	if attempt.Err != nil {
		detail = attempt.Err.Error()
	}
	w.logger.Warn("item failed",
		zap.String("link", item.Link),
		zap.String("status", string(status)),
		zap.Int("attempts", attempts),
		zap.String("error", detail),
	)
	metrics.ObserveItem(string(status))
	return pipeline.FetchResult{
		Item:        item,
		Status:      status,
		ErrorDetail: detail,
		Attempts:    attempts,
		FetchedAt:   w.clock.Now(),
	}
}

// wait sleeps for the backoff duration. It returns false when the
// context finished first.
func (w *Worker) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func className(class pipeline.Class) string {
	switch class {
	case pipeline.ClassOK:
		return "ok"
	case pipeline.ClassTransient:
		return "transient"
	default:
		return "permanent"
	}
}
