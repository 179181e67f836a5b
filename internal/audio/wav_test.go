package audio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/summarize-api/internal/enhance"
)

func tone(freq, amp float64, sampleRate, n int) enhance.Signal {
	sig := make(enhance.Signal, n)
	for i := range sig {
		sig[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return sig
}

func TestWriteReadWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tone.wav")
	sig := tone(440, 0.5, 16000, 16000)

	require.NoError(t, WriteWAV(path, sig, 16000))

	got, sr, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, sr)
	require.Len(t, got, len(sig))
	// 16-bit quantization error
	assert.InDeltaSlice(t, []float64(sig), []float64(got), 1.0/16384)
}

func TestWriteWAV_Clips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	require.NoError(t, WriteWAV(path, enhance.Signal{2, -2, 0.5}, 8000))

	got, _, err := ReadWAV(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got[0], 1e-3)
	assert.InDelta(t, -1.0, got[1], 1e-3)
}

func TestReadWAV_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file at all"), 0644))

	_, _, err := ReadWAV(path)
	assert.ErrorIs(t, err, ErrInvalidWAV)

	_, _, err = ReadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestEnhancedPath(t *testing.T) {
	assert.Equal(t, filepath.Join("enhanced", "talk_enhanced.wav"), EnhancedPath("enhanced", "/tmp/in/talk.mp3"))
	assert.Equal(t, filepath.Join("out", "a.b_enhanced.wav"), EnhancedPath("out", "a.b.wav"))
}

func TestFileEnhancer_EnhanceFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "noisy.wav")
	out := EnhancedPath(filepath.Join(dir, "enhanced"), in)

	sig := tone(440, 0.3, 16000, 16000)
	for i := range sig {
		sig[i] += 0.05 * math.Sin(2*math.Pi*50*float64(i)/16000)
	}
	require.NoError(t, WriteWAV(in, sig, 16000))

	fe := NewFileEnhancer(enhance.NewEnhancer(nil, enhance.WithParallel(false)), nil)
	res, err := fe.EnhanceFile(context.Background(), in, out, true)
	require.NoError(t, err)
	assert.Equal(t, enhance.TierLow, res.Tier)

	got, sr, err := ReadWAV(out)
	require.NoError(t, err)
	assert.Equal(t, 16000, sr)
	assert.Len(t, got, len(sig))
	assert.LessOrEqual(t, got.Peak(), enhance.ClipLevel+1e-3)
}

func TestFileEnhancer_MissingInput(t *testing.T) {
	fe := NewFileEnhancer(enhance.NewEnhancer(nil), nil)
	_, err := fe.EnhanceFile(context.Background(), "/nonexistent.wav", filepath.Join(t.TempDir(), "o.wav"), false)
	assert.ErrorIs(t, err, enhance.ErrEnhancement)
}
