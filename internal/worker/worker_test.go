package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sciencewire/article-harvester/internal/pipeline"
)

type scriptedFetcher struct {
	mu       sync.Mutex
	attempts int
	script   []pipeline.Attempt
}

func (f *scriptedFetcher) Fetch(_ context.Context, _ string) pipeline.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.attempts
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.attempts++
	return f.script[idx]
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

type passthroughExtractor struct{}

func (passthroughExtractor) Extract(markup []byte) (string, bool) {
	if len(markup) == 0 {
		return "", false
	}
	return string(markup), true
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newWorker(f pipeline.Fetcher) *Worker {
	policy := pipeline.NewRetryPolicy(3, time.Millisecond, 2*time.Millisecond)
	return New(f, passthroughExtractor{}, policy, fixedClock{now: time.Unix(1700000000, 0).UTC()}, zap.NewNop())
}

func item() pipeline.WorkItem {
	return pipeline.WorkItem{Index: 0, Link: "https://example.com/a", LinkHash: "aaaa"}
}

var (
	okAttempt        = pipeline.Attempt{StatusCode: 200, Body: []byte("article text"), Class: pipeline.ClassOK}
	transientAttempt = pipeline.Attempt{StatusCode: 503, Err: errors.New("http status 503"), Class: pipeline.ClassTransient}
	permanentAttempt = pipeline.Attempt{StatusCode: 404, Err: errors.New("http status 404"), Class: pipeline.ClassPermanent}
)

func TestProcessSuccessFirstAttempt(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{script: []pipeline.Attempt{okAttempt}}

	res := newWorker(f).Process(context.Background(), item())
	require.Equal(t, pipeline.StatusOK, res.Status)
	require.Equal(t, "article text", res.Content)
	require.Equal(t, 1, res.Attempts)
	require.False(t, res.Unparsable)
	require.Empty(t, res.ErrorDetail)
	require.False(t, res.FetchedAt.IsZero())
}

func TestProcessRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{script: []pipeline.Attempt{transientAttempt, transientAttempt, okAttempt}}

	res := newWorker(f).Process(context.Background(), item())
	require.Equal(t, pipeline.StatusOK, res.Status)
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, 3, f.count())
}

func TestProcessExhaustsRetryBudget(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{script: []pipeline.Attempt{transientAttempt}}

	res := newWorker(f).Process(context.Background(), item())
	require.Equal(t, pipeline.StatusTransient, res.Status)
	// Exactly max_attempts, never max_attempts+1.
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, 3, f.count())
	require.Contains(t, res.ErrorDetail, "503")
}

func TestProcessPermanentFailureIsNotRetried(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{script: []pipeline.Attempt{permanentAttempt}}

	res := newWorker(f).Process(context.Background(), item())
	require.Equal(t, pipeline.StatusPermanent, res.Status)
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, 1, f.count())
	require.Contains(t, res.ErrorDetail, "404")
}

func TestProcessUnparsablePageIsStillOK(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{script: []pipeline.Attempt{{StatusCode: 200, Body: nil, Class: pipeline.ClassOK}}}

	res := newWorker(f).Process(context.Background(), item())
	require.Equal(t, pipeline.StatusOK, res.Status)
	require.Empty(t, res.Content)
	require.True(t, res.Unparsable)
}

func TestProcessCancellationDuringBackoffTerminates(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{script: []pipeline.Attempt{transientAttempt}}
	policy := pipeline.NewRetryPolicy(3, time.Hour, time.Hour)
	w := New(f, passthroughExtractor{}, policy, fixedClock{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan pipeline.FetchResult, 1)
	go func() { done <- w.Process(ctx, item()) }()

	select {
	case res := <-done:
		require.Equal(t, pipeline.StatusTransient, res.Status)
		require.Equal(t, 1, res.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate after cancellation")
	}
}

func TestNextStateTransitions(t *testing.T) {
	t.Parallel()
	w := newWorker(&scriptedFetcher{script: []pipeline.Attempt{okAttempt}})

	require.Equal(t, stateSucceeded, w.next(pipeline.ClassOK, 1))
	require.Equal(t, stateFailed, w.next(pipeline.ClassPermanent, 1))
	require.Equal(t, stateRetryWait, w.next(pipeline.ClassTransient, 1))
	require.Equal(t, stateRetryWait, w.next(pipeline.ClassTransient, 2))
	require.Equal(t, stateFailed, w.next(pipeline.ClassTransient, 3))
}
