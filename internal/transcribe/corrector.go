package transcribe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/summarize-api/internal/generator"
)

// Corrector asks a text generator to fix the grammar of a transcript
// without changing its meaning.
type Corrector struct {
	gen    generator.Generator
	logger *slog.Logger
}

// NewCorrector creates a Corrector. A nil generator makes Correct a no-op.
func NewCorrector(gen generator.Generator, logger *slog.Logger) *Corrector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Corrector{gen: gen, logger: logger}
}

// CorrectionPrompt builds the grammar correction prompt for a language.
func CorrectionPrompt(transcript, language string) string {
	return fmt.Sprintf(
		"Koreksi transkrip berikut agar sesuai kaidah bahasa %s. "+
			"Jangan ubah makna asli, hanya perbaikan tata bahasa:\n\n%s",
		LanguageName(language), transcript)
}

// Correct returns the corrected transcript and whether it was changed by the
// generator. Any failure returns the original transcript.
func (c *Corrector) Correct(ctx context.Context, transcript, language string) (string, bool) {
	if c.gen == nil || transcript == "" {
		return transcript, false
	}

	resp, err := c.gen.Generate(ctx, CorrectionPrompt(transcript, language))
	if err != nil {
		c.logger.Warn("language correction failed, keeping raw transcript", slog.String("error", err.Error()))
		return transcript, false
	}
	if resp.Kind != generator.KindText {
		c.logger.Warn("language correction returned no text, keeping raw transcript",
			slog.String("kind", string(resp.Kind)),
			slog.String("reason", resp.Reason),
		)
		return transcript, false
	}
	return resp.Text(), true
}
