// Package app wires the harvest pipeline together from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sciencewire/article-harvester/internal/aggregate"
	"github.com/sciencewire/article-harvester/internal/batch"
	"github.com/sciencewire/article-harvester/internal/clock/system"
	"github.com/sciencewire/article-harvester/internal/config"
	"github.com/sciencewire/article-harvester/internal/dispatcher"
	"github.com/sciencewire/article-harvester/internal/extract"
	"github.com/sciencewire/article-harvester/internal/fetcher"
	"github.com/sciencewire/article-harvester/internal/hash"
	"github.com/sciencewire/article-harvester/internal/id/uuid"
	"github.com/sciencewire/article-harvester/internal/metrics"
	"github.com/sciencewire/article-harvester/internal/pipeline"
	"github.com/sciencewire/article-harvester/internal/report"
	"github.com/sciencewire/article-harvester/internal/source"
	"github.com/sciencewire/article-harvester/internal/worker"
)

// App holds the shared, long-lived services for one invocation.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string
}

// New creates an App. It fails fast when the run ID cannot be minted.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("mint run id: %w", err)
	}
	return &App{
		cfg:    cfg,
		logger: logger.With(zap.String("run_id", runID)),
		runID:  runID,
	}, nil
}

// Logger exposes the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Harvest runs the full pipeline: load the URL set, fetch it under the
// configured concurrency bound, write the content set, and split the
// successes into batch request files. Per-item failures never abort
// the run; only fatal input/output conditions return an error.
func (a *App) Harvest(ctx context.Context, inputPath string) (report.Summary, error) {
	start := time.Now()
	metrics.Init()
	a.maybeServeMetrics()

	items, err := source.New(hash.New(), a.logger).Load(inputPath)
	if err != nil {
		return report.Summary{}, fmt.Errorf("load url set: %w", err)
	}
	a.logger.Info("url set loaded",
		zap.String("input", inputPath),
		zap.Int("items", len(items)),
	)

	agg := aggregate.New()
	w := worker.New(
		fetcher.New(fetcher.Config{
			UserAgent: a.cfg.Fetch.UserAgent,
			Timeout:   a.cfg.Fetch.Timeout,
		}),
		extract.New(a.cfg.Extract.MaxContentBytes),
		pipeline.NewRetryPolicy(a.cfg.Retry.MaxAttempts, a.cfg.Retry.BackoffBase, a.cfg.Retry.BackoffMax),
		system.New(),
		a.logger,
	)
	d := dispatcher.New(w, agg, a.cfg.Fetch.Concurrency, a.logger)

	if err := d.Run(ctx, items); err != nil {
		return report.Summary{}, fmt.Errorf("run scheduler: %w", err)
	}

	if err := report.WriteContentSet(a.cfg.Output.ContentPath, agg.All()); err != nil {
		return report.Summary{}, err
	}
	a.logger.Info("content set written",
		zap.String("path", a.cfg.Output.ContentPath),
		zap.Int("records", agg.Len()),
	)

	paths, err := a.splitter().Split(agg.Successes())
	if err != nil {
		return report.Summary{}, err
	}

	summary := report.Summary{
		RunID:      a.runID,
		Counts:     agg.Counts(),
		BatchFiles: paths,
		Elapsed:    time.Since(start),
	}
	summary.Log(a.logger)
	return summary, nil
}

// SplitContentSet re-runs the batch splitter over an existing content
// set without refetching anything. Non-ok records are ignored.
func (a *App) SplitContentSet(contentPath string) (report.Summary, error) {
	start := time.Now()

	results, err := report.ReadContentSet(contentPath)
	if err != nil {
		return report.Summary{}, err
	}

	var counts pipeline.Counts
	successes := make([]pipeline.FetchResult, 0, len(results))
	for _, r := range results {
		switch r.Status {
		case pipeline.StatusOK:
			counts.OK++
			if r.Unparsable {
				counts.Unparsable++
			}
			successes = append(successes, r)
		case pipeline.StatusPermanent:
			counts.Permanent++
		case pipeline.StatusTransient:
			counts.Transient++
		}
	}

	paths, err := a.splitter().Split(successes)
	if err != nil {
		return report.Summary{}, err
	}

	summary := report.Summary{
		RunID:      a.runID,
		Counts:     counts,
		BatchFiles: paths,
		Elapsed:    time.Since(start),
	}
	summary.Log(a.logger)
	return summary, nil
}

// Close flushes buffered log entries.
func (a *App) Close() {
	// Sync fails on some terminals; there is nowhere left to report it.
	_ = a.logger.Sync()
}

func (a *App) splitter() *batch.Splitter {
	return batch.New(batch.Config{
		Dir:           a.cfg.Output.BatchDir,
		BaseName:      a.cfg.Output.BatchBase,
		ChunkSize:     a.cfg.Batch.ChunkSize,
		MinContentLen: a.cfg.Batch.MinContentLen,
		Model:         a.cfg.Batch.Model,
	}, a.logger)
}

func (a *App) maybeServeMetrics() {
	if !a.cfg.Metrics.Enabled {
		return
	}
	addr := fmt.Sprintf(":%d", a.cfg.Metrics.Port)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		a.logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}
