package transcribe

import (
	"context"
	"fmt"

	"github.com/maauso/summarize-api/internal/asr"
)

// ASRAdapter adapts the whisper-asr-webservice client to the Transcriber
// interface.
type ASRAdapter struct {
	client    asr.Client
	vadFilter bool
}

// NewASRAdapter creates a new ASR transcriber adapter.
func NewASRAdapter(client asr.Client) *ASRAdapter {
	return &ASRAdapter{client: client}
}

// WithVADFilter asks the service to skip non-speech regions.
func (a *ASRAdapter) WithVADFilter(enabled bool) *ASRAdapter {
	a.vadFilter = enabled
	return a
}

// Transcribe sends the audio file to the ASR service.
func (a *ASRAdapter) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	hint := NormalizeLanguage(language)
	result, err := a.client.Transcribe(ctx, audioPath, asr.TranscribeOptions{
		Language:  hint,
		Task:      asr.TaskTranscribe,
		VADFilter: a.vadFilter,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: asr adapter: %w", ErrTranscription, err)
	}
	if result.Text == "" {
		return Transcript{}, ErrEmptyTranscript
	}

	detected := result.Language
	if detected == "" {
		detected = hint
	}
	return Transcript{Text: result.Text, Language: detected}, nil
}

// Compile-time check that ASRAdapter implements Transcriber.
var _ Transcriber = (*ASRAdapter)(nil)
