package generator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaModel is the local model used when none is configured.
const DefaultOllamaModel = "llama3.1"

// OllamaAdapter adapts a local Ollama server to the Generator interface.
type OllamaAdapter struct {
	client *api.Client
	model  string
}

// NewOllamaAdapter creates an Ollama generator. An empty host uses the
// OLLAMA_HOST environment variable or the default local address.
func NewOllamaAdapter(host, model string, httpClient *http.Client) (*OllamaAdapter, error) {
	if model == "" {
		model = DefaultOllamaModel
	}

	var client *api.Client
	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama: client from environment: %w", err)
		}
		client = c
	} else {
		base, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("ollama: parse host %q: %w", host, err)
		}
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		client = api.NewClient(base, httpClient)
	}

	return &OllamaAdapter{client: client, model: model}, nil
}

// Generate runs a single non-streaming completion.
func (a *OllamaAdapter) Generate(ctx context.Context, prompt string) (Response, error) {
	if prompt == "" {
		return Response{}, ErrEmptyPrompt
	}

	stream := false
	req := &api.GenerateRequest{
		Model:   a.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: map[string]interface{}{"temperature": 0.3},
	}

	var b strings.Builder
	done := false
	err := a.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		done = done || resp.Done
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("ollama adapter generate: %w", err)
	}

	reason := ""
	if done {
		reason = "done"
	}
	return TextResponse(b.String(), reason), nil
}

// Compile-time check that OllamaAdapter implements Generator.
var _ Generator = (*OllamaAdapter)(nil)
