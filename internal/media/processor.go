// Package media provides audio-track extraction from video containers.
package media

import "context"

// Processor defines the interface for video container operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// ExtractAudio writes the first audio stream of the video at src to dst as
	// a mono 16-bit PCM WAV at sampleRate. Returns ErrNoAudioStream when the
	// container carries no audio.
	ExtractAudio(ctx context.Context, src, dst string, sampleRate int) error

	// HasAudioStream reports whether the container has at least one audio stream.
	HasAudioStream(ctx context.Context, path string) (bool, error)

	// GetMediaDuration returns the container duration in seconds.
	GetMediaDuration(ctx context.Context, path string) (float64, error)
}
