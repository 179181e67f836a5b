package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrNoAudioStream is returned when a video has no audio track to extract.
	ErrNoAudioStream = errors.New("media: no audio stream found")
	// ErrInputNotFound is returned when the source file does not exist.
	ErrInputNotFound = errors.New("media: input file not found")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("media: ffprobe execution failed")
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// Verify interface implementation at compile time.
var _ Processor = (*FFmpegProcessor)(nil)

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH). ffprobe
// is looked up next to a custom ffmpeg binary.
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	ffprobePath := "ffprobe"
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	} else if dir := filepath.Dir(ffmpegPath); dir != "." {
		ffprobePath = filepath.Join(dir, "ffprobe")
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// ExtractAudio implements Processor.ExtractAudio.
func (p *FFmpegProcessor) ExtractAudio(ctx context.Context, src, dst string, sampleRate int) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %s", ErrInputNotFound, src)
	}

	hasAudio, err := p.HasAudioStream(ctx, src)
	if err != nil {
		return err
	}
	if !hasAudio {
		return fmt.Errorf("%w: %s", ErrNoAudioStream, filepath.Base(src))
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-i", src,
		"-map", "0:a:0",
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// HasAudioStream implements Processor.HasAudioStream.
func (p *FFmpegProcessor) HasAudioStream(ctx context.Context, path string) (bool, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// GetMediaDuration implements Processor.GetMediaDuration.
func (p *FFmpegProcessor) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(out), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func (p *FFmpegProcessor) runFFprobe(ctx context.Context, args ...string) (string, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}
	return stdout.String(), nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
