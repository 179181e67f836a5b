package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = openai.EmbeddingModelTextEmbedding3Small

// OpenAIEmbedder embeds texts with the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbedder creates an OpenAI embedder. baseURL may point at any
// OpenAI-compatible server.
func NewOpenAIEmbedder(apiKey, baseURL, model string, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrAPIKeyRequired)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIEmbedder{
		client: openai.NewClient(clientOpts...),
		model:  model,
	}, nil
}

// Embed sends all texts in one request and orders the vectors by index.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(resp.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrCountMismatch, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
