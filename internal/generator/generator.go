// Package generator provides the common interface for text generation providers.
// Gemini, OpenAI, Ollama and Senopati adapters implement this interface.
package generator

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyPrompt is returned when Generate is called without a prompt.
var ErrEmptyPrompt = errors.New("generator: prompt is empty")

// Kind classifies a generation result.
type Kind string

// Result kinds shared by every provider.
const (
	KindText    Kind = "text"    // Non-empty generated text
	KindEmpty   Kind = "empty"   // Provider answered without usable text
	KindBlocked Kind = "blocked" // Provider refused or filtered the answer
)

// Response is the outcome of one generation call. Callers switch on Kind and
// never need to inspect provider-specific shapes.
type Response struct {
	Kind   Kind
	Reason string // Finish or block reason reported by the provider, if any

	text string
}

// Text returns the trimmed text for KindText and "" otherwise.
func (r Response) Text() string {
	if r.Kind != KindText {
		return ""
	}
	return r.text
}

// TextResponse builds a response from raw provider text. Whitespace-only
// text becomes KindEmpty.
func TextResponse(text, reason string) Response {
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{Kind: KindEmpty, Reason: reason}
	}
	return Response{Kind: KindText, Reason: reason, text: text}
}

// EmptyResponse builds a KindEmpty response.
func EmptyResponse(reason string) Response {
	return Response{Kind: KindEmpty, Reason: reason}
}

// BlockedResponse builds a KindBlocked response.
func BlockedResponse(reason string) Response {
	return Response{Kind: KindBlocked, Reason: reason}
}

// Generator defines the interface for text generation providers.
type Generator interface {
	// Generate runs a single prompt. Transport and provider failures are
	// errors; a refusal or an empty answer is a Response, not an error.
	Generate(ctx context.Context, prompt string) (Response, error)
}
