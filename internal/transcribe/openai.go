package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAITranscriber uses the hosted Whisper model.
type OpenAITranscriber struct {
	client openai.Client
	model  string
}

// NewOpenAITranscriber creates a transcriber for the OpenAI audio API.
func NewOpenAITranscriber(apiKey, baseURL string, opts ...option.RequestOption) *OpenAITranscriber {
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAITranscriber{
		client: openai.NewClient(clientOpts...),
		model:  openai.AudioModelWhisper1,
	}
}

// verboseTranscription holds the verbose_json fields the SDK type omits.
type verboseTranscription struct {
	Language string `json:"language"`
}

// Transcribe uploads the audio and asks for verbose JSON so the detected
// language comes back with the text.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	f, err := os.Open(audioPath) // #nosec G304 - path comes from the job's own temp storage
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: open audio: %w", ErrTranscription, err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          t.model,
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	hint := NormalizeLanguage(language)
	if hint != "" {
		params.Language = openai.String(hint)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %w", ErrTranscription, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Transcript{}, ErrEmptyTranscript
	}

	detected := hint
	var verbose verboseTranscription
	if raw := resp.RawJSON(); raw != "" && json.Unmarshal([]byte(raw), &verbose) == nil && verbose.Language != "" {
		detected = verbose.Language
	}

	return Transcript{Text: text, Language: detected}, nil
}

var _ Transcriber = (*OpenAITranscriber)(nil)
