package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/maauso/summarize-api/internal/enhance"
)

// ErrInvalidWAV is returned when a file is not a readable PCM WAV.
var ErrInvalidWAV = errors.New("audio: invalid WAV file")

// ReadWAV decodes a PCM WAV file into a mono signal in [-1, 1]. Multi-channel
// audio is mixed down by averaging channels.
func ReadWAV(path string) (enhance.Signal, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read pcm buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: missing format", ErrInvalidWAV)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	channels := max(buf.Format.NumChannels, 1)
	scale := math.Pow(2, float64(bitDepth-1))

	frames := len(buf.Data) / channels
	sig := make(enhance.Signal, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		sig[i] = sum / float64(channels) / scale
	}

	return sig, buf.Format.SampleRate, nil
}

// WriteWAV encodes the signal as a mono 16-bit PCM WAV file. Samples outside
// [-1, 1] are clipped.
func WriteWAV(path string, sig enhance.Signal, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	data := make([]int, len(sig))
	for i, v := range sig {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * 32767))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
