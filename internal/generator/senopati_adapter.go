package generator

import (
	"context"
	"fmt"

	"github.com/maauso/summarize-api/internal/senopati"
)

// SenopatiAdapter adapts the Senopati client to the Generator interface.
type SenopatiAdapter struct {
	client senopati.Client
	opts   senopati.GenerateOptions
}

// NewSenopatiAdapter creates a new Senopati generator adapter.
func NewSenopatiAdapter(client senopati.Client) *SenopatiAdapter {
	return &SenopatiAdapter{
		client: client,
		opts:   senopati.DefaultGenerateOptions(),
	}
}

// Generate sends the prompt to Senopati.
func (a *SenopatiAdapter) Generate(ctx context.Context, prompt string) (Response, error) {
	if prompt == "" {
		return Response{}, ErrEmptyPrompt
	}
	text, err := a.client.Generate(ctx, prompt, a.opts)
	if err != nil {
		return Response{}, fmt.Errorf("senopati adapter generate: %w", err)
	}
	return TextResponse(text, ""), nil
}

// Compile-time check that SenopatiAdapter implements Generator.
var _ Generator = (*SenopatiAdapter)(nil)
