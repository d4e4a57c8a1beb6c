// Package report persists the per-item content set and the run summary.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sciencewire/article-harvester/internal/pipeline"
)

// Record is one content-set line. Failures are present too, so
// consumers can tell "fetched, empty content" from "never fetched".
type Record struct {
	Link        string          `json:"link"`
	LinkHash    string          `json:"link_hash"`
	Content     string          `json:"content"`
	Status      pipeline.Status `json:"status"`
	ErrorDetail string          `json:"error_detail,omitempty"`
	Attempts    int             `json:"attempts"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Unparsable  bool            `json:"unparsable,omitempty"`
}

// WriteContentSet writes one JSON line per result, in the order given.
// An unwritable path is fatal for the run.
func WriteContentSet(path string, results []pipeline.FetchResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create content dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create content set %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range results {
		rec := Record{
			Link:        r.Item.Link,
			LinkHash:    r.Item.LinkHash,
			Content:     r.Content,
			Status:      r.Status,
			ErrorDetail: r.ErrorDetail,
			Attempts:    r.Attempts,
			FetchedAt:   r.FetchedAt,
			Unparsable:  r.Unparsable,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode content record %s: %w", r.Item.LinkHash, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close content set %s: %w", path, err)
	}
	return nil
}

// ReadContentSet loads a content set back into results, preserving file
// order as the dispatch index. The batch command uses it to re-split an
// earlier run without refetching.
func ReadContentSet(path string) ([]pipeline.FetchResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open content set: %w", err)
	}
	defer f.Close()

	var results []pipeline.FetchResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("parse content line %d: %w", line, err)
		}
		results = append(results, pipeline.FetchResult{
			Item: pipeline.WorkItem{
				Index:    len(results),
				Link:     rec.Link,
				LinkHash: rec.LinkHash,
			},
			Status:      rec.Status,
			Content:     rec.Content,
			ErrorDetail: rec.ErrorDetail,
			Attempts:    rec.Attempts,
			FetchedAt:   rec.FetchedAt,
			Unparsable:  rec.Unparsable,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read content set: %w", err)
	}
	return results, nil
}

// Summary is the user-visible outcome of a run.
type Summary struct {
	RunID      string
	Counts     pipeline.Counts
	BatchFiles []string
	Elapsed    time.Duration
}

// Log emits the summary through the structured logger.
func (s Summary) Log(logger *zap.Logger) {
	logger.Info("harvest run finished",
		zap.String("run_id", s.RunID),
		zap.Int("ok", s.Counts.OK),
		zap.Int("unparsable", s.Counts.Unparsable),
		zap.Int("permanent_errors", s.Counts.Permanent),
		zap.Int("transient_exhausted", s.Counts.Transient),
		zap.Strings("batch_files", s.BatchFiles),
		zap.Duration("elapsed", s.Elapsed),
	)
}
