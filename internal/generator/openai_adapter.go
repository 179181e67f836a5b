package generator

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = openai.ChatModelGPT4oMini

// OpenAIAdapter adapts OpenAI-compatible chat completions to the Generator
// interface.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

// NewOpenAIAdapter creates an OpenAI generator. baseURL may point at any
// OpenAI-compatible server; empty keeps the official endpoint.
func NewOpenAIAdapter(apiKey, baseURL, model string, opts ...option.RequestOption) (*OpenAIAdapter, error) {
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

	return &OpenAIAdapter{
		client: openai.NewClient(clientOpts...),
		model:  model,
	}, nil
}

// Generate sends the prompt as a single user message.
func (a *OpenAIAdapter) Generate(ctx context.Context, prompt string) (Response, error) {
	if prompt == "" {
		return Response{}, ErrEmptyPrompt
	}

	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       a.model,
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai adapter generate: %w", err)
	}
	if len(completion.Choices) == 0 {
		return EmptyResponse("no choices"), nil
	}

	choice := completion.Choices[0]
	if choice.Message.Refusal != "" {
		return BlockedResponse(choice.Message.Refusal), nil
	}
	if choice.FinishReason == "content_filter" {
		return BlockedResponse(choice.FinishReason), nil
	}
	return TextResponse(choice.Message.Content, choice.FinishReason), nil
}

// Compile-time check that OpenAIAdapter implements Generator.
var _ Generator = (*OpenAIAdapter)(nil)
