package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaModel is the MiniLM sentence model served by Ollama.
const DefaultOllamaModel = "all-minilm"

// OllamaEmbedder embeds texts with a local Ollama server, one request per
// text.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder creates an Ollama embedder. An empty host uses the
// OLLAMA_HOST environment variable or the default local address.
func NewOllamaEmbedder(host, model string, httpClient *http.Client) (*OllamaEmbedder, error) {
	if model == "" {
		model = DefaultOllamaModel
	}

	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama: client from environment: %w", err)
		}
		return &OllamaEmbedder{client: c, model: model}, nil
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse host %q: %w", host, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaEmbedder{client: api.NewClient(base, httpClient), model: model}, nil
}

// Embed returns one vector per text.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for i, text := range texts {
		resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
			Model:  e.model,
			Prompt: text,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embed chunk %d: %w", i, err)
		}
		out = append(out, resp.Embedding)
	}
	return out, nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
