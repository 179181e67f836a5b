package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/summarize-api/internal/cluster"
	"github.com/maauso/summarize-api/internal/generator"
	"github.com/maauso/summarize-api/internal/textsplit"
)

// scriptedGenerator answers cluster prompts with the first word of the
// cluster text and final prompts with finalResp.
type scriptedGenerator struct {
	mu        sync.Mutex
	prompts   []string
	failOn    string
	finalResp generator.Response
	finalErr  error
	delay     time.Duration

	running atomic.Int32
	peak    atomic.Int32
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (generator.Response, error) {
	n := g.running.Add(1)
	defer g.running.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if strings.HasPrefix(prompt, "You are a professional editor") {
		return g.finalResp, g.finalErr
	}
	text := prompt[strings.Index(prompt, "TEXT:\n")+len("TEXT:\n"):]
	word := strings.Fields(text)[0]
	if g.failOn != "" && word == g.failOn {
		return generator.Response{}, errors.New("provider down")
	}
	return generator.TextResponse("Summary of "+word+".", "stop"), nil
}

// topicEmbedder places chunks starting with "alpha" and "beta" far apart.
type topicEmbedder struct {
	err error
}

func (e topicEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		jitter := float64(i) * 0.01
		switch {
		case strings.HasPrefix(t, "alpha"):
			out[i] = []float64{0 + jitter, 0}
		case strings.HasPrefix(t, "beta"):
			out[i] = []float64{10 + jitter, 10}
		default:
			out[i] = []float64{-50 * float64(i+1), 50 * float64(i+1)}
		}
	}
	return out, nil
}

func TestNew_RequiresGenerator(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoGenerator)
}

func TestChunk_CapsOverlap(t *testing.T) {
	s, err := New(&scriptedGenerator{}, nil, nil)
	require.NoError(t, err)

	chunks, err := s.Chunk(strings.Repeat("word ", 100), 100)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)

	_, err = s.Chunk("text", 0)
	assert.ErrorIs(t, err, textsplit.ErrInvalidChunkSize)
}

func TestCluster_SingleChunkSkipsEmbedding(t *testing.T) {
	s, err := New(&scriptedGenerator{}, topicEmbedder{err: errors.New("must not be called")}, nil)
	require.NoError(t, err)

	clusters, err := s.Cluster(context.Background(), []string{"only chunk"})
	require.NoError(t, err)
	assert.Equal(t, []cluster.Cluster{{ID: 0, Chunks: []string{"only chunk"}}}, clusters)
}

func TestCluster_GroupsTopics(t *testing.T) {
	s, err := New(&scriptedGenerator{}, topicEmbedder{}, nil)
	require.NoError(t, err)

	chunks := []string{"alpha one", "beta one", "alpha two", "beta two", "alpha three"}
	clusters, err := s.Cluster(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	for _, c := range clusters {
		prefix := strings.Fields(c.Chunks[0])[0]
		for _, chunk := range c.Chunks {
			assert.True(t, strings.HasPrefix(chunk, prefix), "cluster %d mixes topics: %v", c.ID, c.Chunks)
		}
	}
}

func TestCluster_EmbedError(t *testing.T) {
	s, err := New(&scriptedGenerator{}, topicEmbedder{err: errors.New("quota")}, nil)
	require.NoError(t, err)

	_, err = s.Cluster(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrClustering)
}

func TestSummarize_MapReduce(t *testing.T) {
	gen := &scriptedGenerator{finalResp: generator.TextResponse(" Final paragraph. ", "stop")}
	s, err := New(gen, nil, nil)
	require.NoError(t, err)

	clusters := []cluster.Cluster{
		{ID: 0, Chunks: []string{"alpha one", "alpha two"}},
		{ID: 1, Chunks: []string{"beta one"}},
	}
	sum, err := s.Summarize(context.Background(), clusters, "id")
	require.NoError(t, err)

	assert.Equal(t, []string{"Summary of alpha.", "Summary of beta."}, sum.ClusterSummaries)
	assert.Equal(t, "Final paragraph.", sum.FinalSummary)
	assert.Empty(t, sum.FinalError)
	assert.Equal(t, "id", sum.Language)

	last := gen.prompts[len(gen.prompts)-1]
	assert.Contains(t, last, "must be in indonesian")
	assert.Contains(t, last, "- Summary of alpha.\n- Summary of beta.")
	assert.Contains(t, gen.prompts[0], "one-sentence summary in indonesian")
}

func TestSummarize_SkipsFailedClusters(t *testing.T) {
	gen := &scriptedGenerator{failOn: "beta", finalResp: generator.TextResponse("ok", "")}
	s, err := New(gen, nil, nil)
	require.NoError(t, err)

	clusters := []cluster.Cluster{
		{ID: 0, Chunks: []string{"alpha"}},
		{ID: 1, Chunks: []string{"beta"}},
		{ID: 2, Chunks: []string{"gamma"}},
	}
	sum, err := s.Summarize(context.Background(), clusters, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"Summary of alpha.", "Summary of gamma."}, sum.ClusterSummaries)
}

func TestSummarize_FinalFailures(t *testing.T) {
	clusters := []cluster.Cluster{{ID: 0, Chunks: []string{"alpha"}}}

	tests := []struct {
		name    string
		resp    generator.Response
		err     error
		wantErr string
	}{
		{"error", generator.Response{}, errors.New("timeout"), "timeout"},
		{"empty", generator.EmptyResponse("length"), nil, "empty response: length"},
		{"blocked", generator.BlockedResponse("safety"), nil, "blocked response: safety"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&scriptedGenerator{finalResp: tt.resp, finalErr: tt.err}, nil, nil)
			require.NoError(t, err)

			sum, err := s.Summarize(context.Background(), clusters, "en")
			require.NoError(t, err)
			assert.Equal(t, FailedFinalSummary, sum.FinalSummary)
			assert.Equal(t, tt.wantErr, sum.FinalError)
			assert.Equal(t, []string{"Summary of alpha."}, sum.ClusterSummaries)
		})
	}
}

func TestSummarize_NoClusterSummaries(t *testing.T) {
	gen := &scriptedGenerator{failOn: "alpha"}
	s, err := New(gen, nil, nil)
	require.NoError(t, err)

	sum, err := s.Summarize(context.Background(), []cluster.Cluster{{ID: 0, Chunks: []string{"alpha"}}}, "en")
	require.NoError(t, err)
	assert.Equal(t, FailedFinalSummary, sum.FinalSummary)
	assert.NotEmpty(t, sum.FinalError)
	assert.Len(t, gen.prompts, 1, "reduce step must not run without summaries")
}

func TestSummarize_BoundedConcurrency(t *testing.T) {
	gen := &scriptedGenerator{delay: 20 * time.Millisecond, finalResp: generator.TextResponse("ok", "")}
	s, err := New(gen, nil, nil, WithMaxConcurrent(2))
	require.NoError(t, err)

	words := []string{"a", "b", "c", "d", "e", "f"}
	clusters := make([]cluster.Cluster, len(words))
	for i, w := range words {
		clusters[i] = cluster.Cluster{ID: i, Chunks: []string{w}}
	}

	sum, err := s.Summarize(context.Background(), clusters, "en")
	require.NoError(t, err)
	assert.LessOrEqual(t, gen.peak.Load(), int32(2))
	require.Len(t, sum.ClusterSummaries, len(words))
	for i, w := range words {
		assert.Equal(t, "Summary of "+w+".", sum.ClusterSummaries[i])
	}
}

func TestSummarize_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &cancelAwareGenerator{}
	s, err := New(gen, nil, nil)
	require.NoError(t, err)

	_, err = s.Summarize(ctx, []cluster.Cluster{{ID: 0, Chunks: []string{"a"}}}, "en")
	assert.ErrorIs(t, err, context.Canceled)
}

type cancelAwareGenerator struct{}

func (cancelAwareGenerator) Generate(ctx context.Context, _ string) (generator.Response, error) {
	if err := ctx.Err(); err != nil {
		return generator.Response{}, err
	}
	return generator.TextResponse("x", ""), nil
}

func TestRun_EndToEnd(t *testing.T) {
	gen := &scriptedGenerator{finalResp: generator.TextResponse("All topics.", "")}
	s, err := New(gen, topicEmbedder{}, nil, WithChunkOverlap(0))
	require.NoError(t, err)

	transcript := "alpha one\n\nbeta one\n\nalpha two\n\nbeta two"
	sum, err := s.Run(context.Background(), transcript, "en", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha one", "beta one", "alpha two", "beta two"}, sum.Chunks)
	assert.Len(t, sum.Clusters, 2)
	assert.Equal(t, "All topics.", sum.FinalSummary)
}

func TestRun_ClusteringFailureFallsBack(t *testing.T) {
	gen := &scriptedGenerator{finalResp: generator.TextResponse("One topic.", "")}
	s, err := New(gen, topicEmbedder{err: errors.New("down")}, nil, WithChunkOverlap(0))
	require.NoError(t, err)

	sum, err := s.Run(context.Background(), "alpha one\n\nbeta one", "en", 10)
	require.NoError(t, err)
	require.Len(t, sum.Clusters, 1)
	assert.Equal(t, []string{"alpha one", "beta one"}, sum.Clusters[0].Chunks)
	assert.Equal(t, []string{"Summary of alpha."}, sum.ClusterSummaries)
}

// logRecords decodes JSON log lines with the given message.
func logRecords(t *testing.T, buf *bytes.Buffer, msg string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

func TestSummarize_LogsClusterAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gen := &scriptedGenerator{failOn: "beta", finalResp: generator.BlockedResponse("safety")}
	s, err := New(gen, nil, logger)
	require.NoError(t, err)

	clusters := []cluster.Cluster{
		{ID: 0, Chunks: []string{"alpha"}},
		{ID: 1, Chunks: []string{"beta"}},
	}
	_, err = s.Summarize(context.Background(), clusters, "en")
	require.NoError(t, err)

	failed := logRecords(t, &buf, "cluster summary failed")
	require.Len(t, failed, 1)
	assert.Equal(t, float64(1), failed[0]["cluster"])
	assert.Equal(t, "provider down", failed[0]["error"])

	done := logRecords(t, &buf, "cluster summarized")
	require.Len(t, done, 1)
	assert.Equal(t, float64(0), done[0]["cluster"])

	final := logRecords(t, &buf, "final summary returned no text")
	require.Len(t, final, 1)
	assert.Equal(t, "blocked", final[0]["kind"])
	assert.Equal(t, "safety", final[0]["reason"])
}
