// Package source ingests the line-delimited URL record set.
package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/sciencewire/article-harvester/internal/hash"
	"github.com/sciencewire/article-harvester/internal/pipeline"
)

// record mirrors one input line. Upstream extraction also emits
// headline and date; only link and link_hash matter here.
type record struct {
	Link     string `json:"link"`
	LinkHash string `json:"link_hash"`
}

// Source turns a .jsonl record set into ordered, deduplicated work items.
type Source struct {
	hasher pipeline.Hasher
	logger *zap.Logger
}

// New builds a Source.
func New(hasher pipeline.Hasher, logger *zap.Logger) *Source {
	if hasher == nil {
		hasher = hash.New()
	}
	return &Source{hasher: hasher, logger: logger}
}

// Load reads every line of the record set. An unreadable file or a
// malformed JSON line is fatal; lines with an empty link are skipped;
// a repeated link hash keeps its first occurrence so each hash is
// dispatched exactly once.
func (s *Source) Load(path string) ([]pipeline.WorkItem, error) {
	if !strings.HasSuffix(path, ".jsonl") {
		return nil, fmt.Errorf("input file %s must end with .jsonl", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var items []pipeline.WorkItem
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("parse input line %d: %w", line, err)
		}
		if rec.Link == "" {
			s.logger.Warn("skipping record without link", zap.Int("line", line))
			continue
		}
		linkHash := rec.LinkHash
		if len(linkHash) != hash.DigestLen {
			linkHash = s.hasher.Hash(rec.Link)
		}
		if _, dup := seen[linkHash]; dup {
			s.logger.Debug("skipping duplicate link",
				zap.String("link", rec.Link),
				zap.String("link_hash", linkHash),
			)
			continue
		}
		seen[linkHash] = struct{}{}
		items = append(items, pipeline.WorkItem{
			Index:    len(items),
			Link:     rec.Link,
			LinkHash: linkHash,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return items, nil
}
