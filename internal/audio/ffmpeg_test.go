package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// checkFFmpeg skips test if ffmpeg is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// createTestAudio renders a 440 Hz tone of the given duration with optional
// silences ([start, duration] pairs) into outputPath. The container follows
// the extension; sampleRate and channels describe the source, not the
// standardized output.
func createTestAudio(t *testing.T, outputPath string, durationSec float64, silenceAt [][2]float64, sampleRate, channels int) {
	t.Helper()

	var inputs []string
	parts := 0
	current := 0.0
	tone := func(d float64) {
		inputs = append(inputs, "-f", "lavfi", "-i", "sine=frequency=440:duration="+formatDuration(d))
		parts++
	}
	for _, s := range silenceAt {
		if s[0] > current {
			tone(s[0] - current)
		}
		inputs = append(inputs, "-f", "lavfi", "-i",
			"anullsrc=channel_layout=mono:sample_rate=44100:duration="+formatDuration(s[1]))
		parts++
		current = s[0] + s[1]
	}
	if current < durationSec {
		tone(durationSec - current)
	}

	var concatInputs string
	for i := 0; i < parts; i++ {
		concatInputs += "[" + strconv.Itoa(i) + ":a]"
	}
	filter := concatInputs + "concat=n=" + strconv.Itoa(parts) + ":v=0:a=1[out]"

	args := append(inputs,
		"-filter_complex", filter,
		"-map", "[out]",
		"-ar", strconv.Itoa(sampleRate), "-ac", strconv.Itoa(channels),
		"-y", outputPath,
	)

	cmd := exec.Command("ffmpeg", args...)
	stderr, _ := cmd.CombinedOutput()
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		t.Fatalf("failed to create test audio: %s", string(stderr))
	}
}

func formatDuration(sec float64) string {
	return fmt.Sprintf("%.3f", sec)
}

func TestFFmpegConverter_StandardizeMP3(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	input := filepath.Join(tmpDir, "stereo.mp3")
	output := filepath.Join(tmpDir, "out", "standard.wav")
	createTestAudio(t, input, 3, nil, 44100, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conv := NewFFmpegConverter("")
	if err := conv.Standardize(ctx, input, output, 16000); err != nil {
		t.Fatalf("Standardize failed: %v", err)
	}

	sig, sr, err := ReadWAV(output)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if sr != 16000 {
		t.Errorf("sample rate: got %d, want 16000", sr)
	}
	// mp3 encoders pad a few frames; allow a small tolerance.
	if got := float64(len(sig)) / 16000; got < 2.9 || got > 3.2 {
		t.Errorf("duration: got %.3fs, want ~3s", got)
	}
}

func TestFFmpegConverter_Duration(t *testing.T) {
	checkFFmpeg(t)

	input := filepath.Join(t.TempDir(), "tone.wav")
	createTestAudio(t, input, 5, nil, 16000, 1)

	d, err := NewFFmpegConverter("").Duration(context.Background(), input)
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}
	if d < 4.9 || d > 5.1 {
		t.Errorf("duration: got %f, want ~5", d)
	}
}

func TestFFmpegConverter_Silences(t *testing.T) {
	checkFFmpeg(t)

	input := filepath.Join(t.TempDir(), "gaps.wav")
	createTestAudio(t, input, 10, [][2]float64{{3, 1}, {7, 1.5}}, 16000, 1)

	silences, err := NewFFmpegConverter("").Silences(context.Background(), input, DefaultSilenceOpts())
	if err != nil {
		t.Fatalf("Silences failed: %v", err)
	}
	if len(silences) != 2 {
		t.Fatalf("expected 2 silences, got %d: %+v", len(silences), silences)
	}
	if total := TotalSilence(silences); total < 2.3 || total > 2.7 {
		t.Errorf("total silence: got %f, want ~2.5", total)
	}
}

func TestFFmpegConverter_ContextCancellation(t *testing.T) {
	checkFFmpeg(t)

	input := filepath.Join(t.TempDir(), "tone.wav")
	createTestAudio(t, input, 2, nil, 16000, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFFmpegConverter("").Standardize(ctx, input, filepath.Join(t.TempDir(), "out.wav"), 16000)
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestFFmpegConverter_NonExistentFile(t *testing.T) {
	err := NewFFmpegConverter("").Standardize(context.Background(), "/nonexistent/file.mp3", "/tmp/out.wav", 16000)
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		output string
		want   float64
	}{
		{"  Duration: 00:00:10.50, start: 0.000000", 10.5},
		{"  Duration: 01:02:03.250, bitrate: 256 kb/s", 3723.25},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.output)
		if err != nil {
			t.Fatalf("parseDuration(%q) failed: %v", tt.output, err)
		}
		if got != tt.want {
			t.Errorf("parseDuration(%q): got %f, want %f", tt.output, got, tt.want)
		}
	}

	if _, err := parseDuration("no duration here"); err == nil {
		t.Error("expected error for output without duration")
	}
}

func TestParseSilenceOutput(t *testing.T) {
	output := `
[silencedetect @ 0x55f1a2b3c4d0] silence_start: -0.01
[silencedetect @ 0x55f1a2b3c4d0] silence_end: 0.8 | silence_duration: 0.81
[silencedetect @ 0x55f1a2b3c4d0] silence_start: 10.5
[silencedetect @ 0x55f1a2b3c4d0] silence_end: 11.2 | silence_duration: 0.7
[silencedetect @ 0x55f1a2b3c4d0] silence_end: 12.0 | silence_duration: 0.7
[silencedetect @ 0x55f1a2b3c4d0] silence_start: 45.0
[silencedetect @ 0x55f1a2b3c4d0] silence_end: 46.5 | silence_duration: 1.5
`

	intervals := parseSilenceOutput(output)

	if len(intervals) != 3 {
		t.Fatalf("expected 3 intervals, got %d", len(intervals))
	}
	if intervals[0].Start != 0 || intervals[0].End != 0.8 {
		t.Errorf("interval 0: got %+v, want start clamped to 0", intervals[0])
	}
	if intervals[1].Start != 10.5 || intervals[1].End != 11.2 {
		t.Errorf("interval 1: got %+v, want 10.5-11.2", intervals[1])
	}
	if intervals[2].Start != 45.0 || intervals[2].End != 46.5 {
		t.Errorf("interval 2: got %+v, want 45-46.5", intervals[2])
	}
}

func TestNewFFmpegConverter_DefaultPath(t *testing.T) {
	conv := NewFFmpegConverter("")
	if conv.ffmpegPath != "ffmpeg" {
		t.Errorf("expected default path 'ffmpeg', got '%s'", conv.ffmpegPath)
	}
}

func TestNewFFmpegConverter_CustomPath(t *testing.T) {
	conv := NewFFmpegConverter("/custom/path/ffmpeg")
	if conv.ffmpegPath != "/custom/path/ffmpeg" {
		t.Errorf("expected custom path, got '%s'", conv.ffmpegPath)
	}
}
