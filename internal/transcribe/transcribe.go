// Package transcribe converts speech audio into text through pluggable
// speech-to-text backends.
package transcribe

import (
	"context"
	"errors"
	"strings"
)

// Static errors for transcription.
var (
	// ErrTranscription is returned when a backend fails to transcribe.
	ErrTranscription = errors.New("transcribe: transcription failed")
	// ErrEmptyTranscript is returned when a backend returns no speech.
	ErrEmptyTranscript = errors.New("transcribe: transcript is empty")
)

// Transcript is the text of a recording and its detected language.
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcriber converts an audio file to text. An empty language means
// auto-detect.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (Transcript, error)
}

// NormalizeLanguage turns a user-supplied language hint into a backend hint.
// Blank values and the placeholders "none" and "string" mean auto-detect.
func NormalizeLanguage(hint string) string {
	h := strings.ToLower(strings.TrimSpace(hint))
	switch h {
	case "", "none", "string":
		return ""
	}
	return h
}

var languageNames = map[string]string{
	"ar": "arabic",
	"bn": "bengali",
	"de": "german",
	"en": "english",
	"es": "spanish",
	"fa": "persian",
	"fr": "french",
	"hi": "hindi",
	"id": "indonesian",
	"it": "italian",
	"ja": "japanese",
	"jw": "javanese",
	"ko": "korean",
	"ms": "malay",
	"nl": "dutch",
	"pl": "polish",
	"pt": "portuguese",
	"ru": "russian",
	"su": "sundanese",
	"sv": "swedish",
	"th": "thai",
	"tl": "tagalog",
	"tr": "turkish",
	"uk": "ukrainian",
	"ur": "urdu",
	"vi": "vietnamese",
	"zh": "chinese",
}

// LanguageName returns the lowercase English name for an ISO 639-1 code.
// Names pass through unchanged and unknown codes are returned as given.
func LanguageName(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if name, ok := languageNames[c]; ok {
		return name
	}
	return c
}
