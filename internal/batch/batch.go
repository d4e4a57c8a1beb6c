// Package batch partitions harvested content into bulk request files
// for the downstream summarization call.
package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sciencewire/article-harvester/internal/pipeline"
)

// DefaultChunkSize is the record cap per batch file.
const DefaultChunkSize = 50

// DefaultModel is the summarization model named in each request body.
const DefaultModel = "gpt-4.1-mini"

const completionsEndpoint = "/v1/chat/completions"

// systemMessage instructs the summarizer. The downstream batch caller
// sends it verbatim as the system role for every record.
const systemMessage = `You are an advanced article analysis system designed to process and structure content from articles.
Analyze the provided article text and respond with a single valid JSON object of the shape
{"summarization": string, "tags": [string], "key_insights": [string]}.

Content guidelines:
- Ignore leftover navigation, advertisement, footer, and call-to-action fragments.
- Summarization: 2-10 paragraphs (100-500 words), clear professional language, main points first.
- Tags: 3-10 relevant lowercase tags, hyphenated when multi-word, most relevant first.
- Key insights: 3-10 takeaways, each 1-2 complete sentences ending with a period.

Output requirements: valid JSON only, double quotes, no trailing commas, no text outside the JSON object.`

// Request is one line of a batch input file. CustomID embeds the link
// hash so batch responses can be rejoined to the originating article.
type Request struct {
	CustomID string `json:"custom_id"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	Body     Body   `json:"body"`
}

// Body is the chat-completions payload for one article.
type Body struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat ResponseFormat `json:"response_format"`
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat forces JSON output from the summarizer.
type ResponseFormat struct {
	Type string `json:"type"`
}

// Config controls the splitter.
type Config struct {
	Dir           string
	BaseName      string
	ChunkSize     int
	MinContentLen int
	Model         string
}

// Splitter writes deterministic, fixed-size batch request files.
type Splitter struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Splitter. Zero values fall back to the defaults; the
// min-content filter defaults to off so every success lands in exactly
// one file.
func New(cfg Config, logger *zap.Logger) *Splitter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseName == "" {
		cfg.BaseName = "batch_input.jsonl"
	}
	return &Splitter{cfg: cfg, logger: logger}
}

// Split writes ceil(len(kept)/chunk) numbered files and returns their
// paths in sequence order. The input must already be in its final
// deterministic order; re-running on an identical success set
// reproduces the files byte for byte.
func (s *Splitter) Split(successes []pipeline.FetchResult) ([]string, error) {
	kept := make([]pipeline.FetchResult, 0, len(successes))
	for _, r := range successes {
		if len(r.Content) < s.cfg.MinContentLen {
			s.logger.Debug("skipping short content",
				zap.String("link_hash", r.Item.LinkHash),
				zap.Int("content_len", len(r.Content)),
			)
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(s.cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create batch dir %s: %w", s.cfg.Dir, err)
	}

	var paths []string
	for start := 0; start < len(kept); start += s.cfg.ChunkSize {
		end := start + s.cfg.ChunkSize
		if end > len(kept) {
			end = len(kept)
		}
		path := s.chunkPath(len(paths))
		if err := s.writeChunk(path, kept[start:end], start); err != nil {
			return nil, err
		}
		s.logger.Info("batch file written",
			zap.String("path", path),
			zap.Int("records", end-start),
		)
		paths = append(paths, path)
	}
	return paths, nil
}

// BuildRequest shapes one article into its request envelope. The
// ordinal is the record's position in the deterministic success order.
func (s *Splitter) BuildRequest(r pipeline.FetchResult, ordinal int) Request {
	return Request{
		CustomID: fmt.Sprintf("summary_for_%s_%d", r.Item.LinkHash, ordinal),
		Method:   "POST",
		URL:      completionsEndpoint,
		Body: Body{
			Model: s.cfg.Model,
			Messages: []Message{
				{Role: "system", Content: systemMessage},
				{Role: "user", Content: "Summarize the following web article content:\n\n" + r.Content},
			},
			Temperature:    0.3,
			ResponseFormat: ResponseFormat{Type: "json_object"},
		},
	}
}

func (s *Splitter) writeChunk(path string, records []pipeline.FetchResult, offset int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create batch file %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i, r := range records {
		if err := enc.Encode(s.BuildRequest(r, offset+i)); err != nil {
			return fmt.Errorf("encode batch record %s: %w", r.Item.LinkHash, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close batch file %s: %w", path, err)
	}
	return nil
}

func (s *Splitter) chunkPath(index int) string {
	base := strings.TrimSuffix(s.cfg.BaseName, ".jsonl")
	return filepath.Join(s.cfg.Dir, fmt.Sprintf("%s_%d.jsonl", base, index))
}
