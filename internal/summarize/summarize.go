// Package summarize produces a topic-aware summary of a transcript: the text
// is chunked, chunks are grouped by topic, every topic is summarized in one
// sentence and the sentences are merged into a final paragraph.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/summarize-api/internal/cluster"
	"github.com/maauso/summarize-api/internal/embedding"
	"github.com/maauso/summarize-api/internal/generator"
	"github.com/maauso/summarize-api/internal/textsplit"
	"github.com/maauso/summarize-api/internal/transcribe"
)

// FailedFinalSummary is reported when the reduce step yields no text.
const FailedFinalSummary = "Failed to generate final summary."

// DefaultMaxConcurrent bounds parallel cluster summaries.
const DefaultMaxConcurrent = 3

// Static errors for summarization.
var (
	// ErrClustering is returned when chunks cannot be embedded or clustered.
	ErrClustering = errors.New("summarize: clustering failed")
	// ErrNoGenerator is returned when a Summarizer is built without a generator.
	ErrNoGenerator = errors.New("summarize: generator is required")
)

// Summary is the outcome of a full summarization run.
type Summary struct {
	Language         string            `json:"language"`
	Chunks           []string          `json:"chunks"`
	Clusters         []cluster.Cluster `json:"clusters"`
	ClusterSummaries []string          `json:"cluster_summaries"`
	FinalSummary     string            `json:"summary"`
	FinalError       string            `json:"final_error,omitempty"`
}

// Summarizer runs the chunk, cluster, map and reduce steps.
type Summarizer struct {
	gen           generator.Generator
	embedder      embedding.Embedder
	clusterer     cluster.HDBSCAN
	chunkOverlap  int
	maxConcurrent int
	logger        *slog.Logger
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithMaxConcurrent bounds the number of cluster summaries generated at once.
func WithMaxConcurrent(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithChunkOverlap sets the rune overlap between consecutive chunks.
func WithChunkOverlap(n int) Option {
	return func(s *Summarizer) {
		if n >= 0 {
			s.chunkOverlap = n
		}
	}
}

// WithClusterer replaces the default HDBSCAN settings.
func WithClusterer(c cluster.HDBSCAN) Option {
	return func(s *Summarizer) {
		s.clusterer = c
	}
}

// New creates a Summarizer. The embedder may be nil, in which case every
// transcript is treated as a single topic.
func New(gen generator.Generator, embedder embedding.Embedder, logger *slog.Logger, opts ...Option) (*Summarizer, error) {
	if gen == nil {
		return nil, ErrNoGenerator
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Summarizer{
		gen:           gen,
		embedder:      embedder,
		clusterer:     cluster.New(),
		chunkOverlap:  textsplit.DefaultChunkOverlap,
		maxConcurrent: DefaultMaxConcurrent,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Chunk splits the transcript into chunks of at most chunkSize runes. The
// overlap is capped at half the chunk size for small chunk sizes.
func (s *Summarizer) Chunk(transcript string, chunkSize int) ([]string, error) {
	overlap := min(s.chunkOverlap, chunkSize/2)
	splitter, err := textsplit.New(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return splitter.Split(transcript), nil
}

// Cluster groups chunks by topic. Zero or one chunk needs no embedding.
func (s *Summarizer) Cluster(ctx context.Context, chunks []string) ([]cluster.Cluster, error) {
	if len(chunks) <= 1 || s.embedder == nil {
		return cluster.Group(chunks, nil), nil
	}

	start := time.Now()
	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %w", ErrClustering, err)
	}
	labels, err := s.clusterer.Fit(vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClustering, err)
	}

	groups := cluster.Group(chunks, labels)
	s.logger.Info("chunks clustered",
		slog.Int("chunks", len(chunks)),
		slog.Int("clusters", len(groups)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return groups, nil
}

// Summarize runs the map and reduce steps over the clusters. Failed cluster
// summaries are skipped; a failed reduce step is reported through
// FinalSummary and FinalError rather than as an error. The error return is
// reserved for context cancellation.
func (s *Summarizer) Summarize(ctx context.Context, clusters []cluster.Cluster, language string) (*Summary, error) {
	name := transcribe.LanguageName(language)

	summaries, err := s.mapClusters(ctx, clusters, name)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		Language:         language,
		Clusters:         clusters,
		ClusterSummaries: summaries,
	}
	for _, c := range clusters {
		out.Chunks = append(out.Chunks, c.Chunks...)
	}

	if len(summaries) == 0 {
		out.FinalSummary = FailedFinalSummary
		out.FinalError = "no cluster produced a summary"
		return out, nil
	}

	resp, err := s.gen.Generate(ctx, FinalPrompt(summaries, name))
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("final summary failed", slog.String("error", err.Error()))
		out.FinalSummary = FailedFinalSummary
		out.FinalError = err.Error()
	case resp.Kind != generator.KindText:
		s.logger.Warn("final summary returned no text",
			slog.String("kind", string(resp.Kind)),
			slog.String("reason", resp.Reason),
		)
		out.FinalSummary = FailedFinalSummary
		out.FinalError = fmt.Sprintf("%s response: %s", resp.Kind, resp.Reason)
	default:
		out.FinalSummary = resp.Text()
	}
	return out, nil
}

// Run chunks, clusters and summarizes a transcript in one call. A clustering
// failure falls back to a single topic.
func (s *Summarizer) Run(ctx context.Context, transcript, language string, chunkSize int) (*Summary, error) {
	chunks, err := s.Chunk(transcript, chunkSize)
	if err != nil {
		return nil, err
	}
	clusters, err := s.Cluster(ctx, chunks)
	if err != nil {
		s.logger.Warn("clustering failed, summarizing as one topic", slog.String("error", err.Error()))
		clusters = cluster.Group(chunks, nil)
	}
	sum, err := s.Summarize(ctx, clusters, language)
	if err != nil {
		return nil, err
	}
	sum.Chunks = chunks
	return sum, nil
}

// mapClusters summarizes each cluster with bounded concurrency and returns
// the successful summaries in cluster order.
func (s *Summarizer) mapClusters(ctx context.Context, clusters []cluster.Cluster, language string) ([]string, error) {
	results := make([]string, len(clusters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i, c := range clusters {
		g.Go(func() error {
			resp, err := s.gen.Generate(gctx, ClusterPrompt(c.Chunks, language))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("cluster summary failed",
					slog.Int("cluster", c.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if resp.Kind != generator.KindText {
				s.logger.Warn("cluster summary empty",
					slog.Int("cluster", c.ID),
					slog.String("kind", string(resp.Kind)),
					slog.String("reason", resp.Reason),
				)
				return nil
			}
			results[i] = resp.Text()
			s.logger.Debug("cluster summarized", slog.Int("cluster", c.ID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("summarize clusters: %w", err)
	}

	out := make([]string, 0, len(results))
	for _, r := range results {
		if r != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// ClusterPrompt asks for a one-sentence summary of a topic's chunks.
func ClusterPrompt(chunks []string, language string) string {
	return fmt.Sprintf(
		"You are a helpful assistant. Summarize the key points from the following text, "+
			"which is part of an audio transcript. Please provide a concise, one-sentence summary in %s.\n"+
			"---\nTEXT:\n%s\n---\nSUMMARY:",
		language, strings.Join(chunks, " "))
}

// FinalPrompt asks for a single paragraph combining the topic summaries.
func FinalPrompt(summaries []string, language string) string {
	return fmt.Sprintf(
		"You are a professional editor. Combine the following key points from a transcript "+
			"into a single, coherent paragraph. The final summary must be in %s.\n"+
			"---\nKEY POINTS:\n- %s\n---\nFINAL SUMMARY PARAGRAPH:",
		language, strings.Join(summaries, "\n- "))
}
