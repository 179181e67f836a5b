// Package audio provides format standardization, WAV codec helpers and
// file-level enhancement for uploaded recordings.
package audio

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// DefaultSampleRate is the sample rate every recording is standardized to.
const DefaultSampleRate = 16000

// ErrUnsupportedFormat is returned for file extensions the pipeline cannot handle.
var ErrUnsupportedFormat = errors.New("audio: unsupported file format")

// Kind classifies an input file by its container.
type Kind int

const (
	// KindUnknown marks unsupported extensions.
	KindUnknown Kind = iota
	// KindAudio marks audio-only containers.
	KindAudio
	// KindVideo marks video containers whose audio track must be extracted.
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

var extensions = map[string]Kind{
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".m4a":  KindAudio,
	".flac": KindAudio,
	".ogg":  KindAudio,
	".mp4":  KindVideo,
	".mkv":  KindVideo,
	".mov":  KindVideo,
	".webm": KindVideo,
	".avi":  KindVideo,
}

// Classify returns the Kind of path based on its extension (case-insensitive).
func Classify(path string) Kind {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// IsWAV reports whether path has a .wav extension.
func IsWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// SupportedExtensions lists accepted extensions grouped by kind.
func SupportedExtensions() map[Kind][]string {
	out := make(map[Kind][]string)
	for ext, kind := range extensions {
		out[kind] = append(out[kind], ext)
	}
	return out
}

// SilenceOpts configures silence detection.
type SilenceOpts struct {
	// MinSilenceMs is the minimum duration in milliseconds to count as silence.
	// Default: 500 milliseconds.
	MinSilenceMs int

	// ThreshDB is the volume threshold in dBFS below which audio is silent.
	// Default: -40 dBFS.
	ThreshDB float64
}

// DefaultSilenceOpts returns the default options for silence detection.
func DefaultSilenceOpts() SilenceOpts {
	return SilenceOpts{
		MinSilenceMs: 500,
		ThreshDB:     -40,
	}
}

// Silence is a detected silent interval in seconds.
type Silence struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the interval length in seconds.
func (s Silence) Duration() float64 {
	return s.End - s.Start
}

// Converter turns arbitrary audio files into the pipeline's PCM contract.
type Converter interface {
	// Standardize converts src to a mono 16-bit PCM WAV at sampleRate and
	// writes it to dst.
	Standardize(ctx context.Context, src, dst string, sampleRate int) error

	// Duration returns the duration of the file in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// Silences returns the silent intervals of the file.
	Silences(ctx context.Context, path string, opts SilenceOpts) ([]Silence, error)
}
