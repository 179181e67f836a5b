package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrAPIKeyRequired is returned when a hosted provider has no API key.
var ErrAPIKeyRequired = errors.New("generator: API key is required")

// contentGenerator is the part of genai.GenerativeModel the adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiAdapter adapts the Gemini API to the Generator interface.
type GeminiAdapter struct {
	client *genai.Client
	model  contentGenerator
}

// NewGeminiAdapter creates a Gemini generator for the given model name.
// An empty model name selects DefaultGeminiModel.
func NewGeminiAdapter(ctx context.Context, apiKey, model string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrAPIKeyRequired)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiAdapter{
		client: client,
		model:  client.GenerativeModel(model),
	}, nil
}

// Generate sends the prompt to Gemini. Safety blocks are reported as
// KindBlocked rather than errors.
func (a *GeminiAdapter) Generate(ctx context.Context, prompt string) (Response, error) {
	if prompt == "" {
		return Response{}, ErrEmptyPrompt
	}

	resp, err := a.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return BlockedResponse(blockReason(blocked)), nil
		}
		return Response{}, fmt.Errorf("gemini adapter generate: %w", err)
	}
	return fromGemini(resp), nil
}

// Close releases the underlying gRPC connection.
func (a *GeminiAdapter) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

func fromGemini(resp *genai.GenerateContentResponse) Response {
	if resp == nil || len(resp.Candidates) == 0 {
		return EmptyResponse("no candidates")
	}

	cand := resp.Candidates[0]
	reason := cand.FinishReason.String()
	if cand.Content == nil {
		return EmptyResponse(reason)
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return TextResponse(b.String(), reason)
}

func blockReason(e *genai.BlockedError) string {
	if e.PromptFeedback != nil {
		return e.PromptFeedback.BlockReason.String()
	}
	if e.Candidate != nil {
		return e.Candidate.FinishReason.String()
	}
	return "blocked"
}

// Compile-time check that GeminiAdapter implements Generator.
var _ Generator = (*GeminiAdapter)(nil)
