package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sciencewire/article-harvester/internal/pipeline"
)

func successes(n int) []pipeline.FetchResult {
	out := make([]pipeline.FetchResult, n)
	for i := range out {
		out[i] = pipeline.FetchResult{
			Item: pipeline.WorkItem{
				Index:    i,
				Link:     fmt.Sprintf("https://example.com/%d", i),
				LinkHash: fmt.Sprintf("%032d", i),
			},
			Status:   pipeline.StatusOK,
			Content:  fmt.Sprintf("article body number %d with enough text", i),
			Attempts: 1,
		}
	}
	return out
}

func readRequests(t *testing.T, path string) []Request {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var reqs []Request
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r Request
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		reqs = append(reqs, r)
	}
	require.NoError(t, scanner.Err())
	return reqs
}

func TestSplitProducesCeilOfChunks(t *testing.T) {
	t.Parallel()
	s := New(Config{Dir: t.TempDir(), ChunkSize: 50}, zap.NewNop())

	paths, err := s.Split(successes(120))
	require.NoError(t, err)
	require.Len(t, paths, 3)

	sizes := []int{len(readRequests(t, paths[0])), len(readRequests(t, paths[1])), len(readRequests(t, paths[2]))}
	require.Equal(t, []int{50, 50, 20}, sizes)
}

func TestSplitConcatenationReproducesSuccessSet(t *testing.T) {
	t.Parallel()
	s := New(Config{Dir: t.TempDir(), ChunkSize: 7}, zap.NewNop())

	in := successes(23)
	paths, err := s.Split(in)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	var all []Request
	for _, p := range paths {
		all = append(all, readRequests(t, p)...)
	}
	require.Len(t, all, len(in))
	for i, req := range all {
		require.Equal(t, fmt.Sprintf("summary_for_%s_%d", in[i].Item.LinkHash, i), req.CustomID)
		// Downstream rejoin splits on "_" and reads position 2.
		require.Equal(t, in[i].Item.LinkHash, strings.Split(req.CustomID, "_")[2])
		require.Contains(t, req.Body.Messages[1].Content, in[i].Content)
	}
}

func TestSplitIsByteForByteDeterministic(t *testing.T) {
	t.Parallel()
	in := successes(12)

	first := New(Config{Dir: t.TempDir(), ChunkSize: 5}, zap.NewNop())
	second := New(Config{Dir: t.TempDir(), ChunkSize: 5}, zap.NewNop())

	firstPaths, err := first.Split(in)
	require.NoError(t, err)
	secondPaths, err := second.Split(in)
	require.NoError(t, err)
	require.Len(t, secondPaths, len(firstPaths))

	for i := range firstPaths {
		a, err := os.ReadFile(firstPaths[i])
		require.NoError(t, err)
		b, err := os.ReadFile(secondPaths[i])
		require.NoError(t, err)
		require.Equal(t, a, b)
	}
}

func TestSplitRequestEnvelope(t *testing.T) {
	t.Parallel()
	s := New(Config{Dir: t.TempDir()}, zap.NewNop())

	paths, err := s.Split(successes(1))
	require.NoError(t, err)
	require.Len(t, paths, 1)

	reqs := readRequests(t, paths[0])
	require.Len(t, reqs, 1)
	req := reqs[0]

	require.Equal(t, "POST", req.Method)
	require.Equal(t, "/v1/chat/completions", req.URL)
	require.Equal(t, DefaultModel, req.Body.Model)
	require.InDelta(t, 0.3, req.Body.Temperature, 1e-9)
	require.Equal(t, "json_object", req.Body.ResponseFormat.Type)
	require.Len(t, req.Body.Messages, 2)
	require.Equal(t, "system", req.Body.Messages[0].Role)
	require.Equal(t, "user", req.Body.Messages[1].Role)
}

func TestSplitMinContentFilter(t *testing.T) {
	t.Parallel()
	s := New(Config{Dir: t.TempDir(), ChunkSize: 10, MinContentLen: 100}, zap.NewNop())

	in := successes(3)
	in[1].Content = "too short"
	long := strings.Repeat("long enough content ", 10)
	in[0].Content = long
	in[2].Content = long

	paths, err := s.Split(in)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	reqs := readRequests(t, paths[0])
	require.Len(t, reqs, 2)
	require.Equal(t, in[0].Item.LinkHash, strings.Split(reqs[0].CustomID, "_")[2])
	require.Equal(t, in[2].Item.LinkHash, strings.Split(reqs[1].CustomID, "_")[2])
}

func TestSplitEmptySuccessSetWritesNothing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := New(Config{Dir: dir}, zap.NewNop())

	paths, err := s.Split(nil)
	require.NoError(t, err)
	require.Empty(t, paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestChunkPathNumbering(t *testing.T) {
	t.Parallel()
	s := New(Config{Dir: "/tmp/batch", BaseName: "science_batch.jsonl"}, zap.NewNop())

	require.Equal(t, "/tmp/batch/science_batch_0.jsonl", s.chunkPath(0))
	require.Equal(t, "/tmp/batch/science_batch_3.jsonl", s.chunkPath(3))
}
