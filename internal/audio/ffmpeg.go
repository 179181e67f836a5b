package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	durationRe     = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*([\d.]+)`)
)

// FFmpegConverter implements Converter using the ffmpeg CLI.
type FFmpegConverter struct {
	ffmpegPath string
}

// NewFFmpegConverter creates a new FFmpegConverter.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegConverter(ffmpegPath string) *FFmpegConverter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegConverter{ffmpegPath: ffmpegPath}
}

// Verify interface implementation at compile time.
var _ Converter = (*FFmpegConverter)(nil)

// Standardize implements Converter.Standardize.
func (c *FFmpegConverter) Standardize(ctx context.Context, src, dst string, sampleRate int) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", src)
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-y",
		"-hide_banner",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		dst,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// Duration implements Converter.Duration.
func (c *FFmpegConverter) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-i", path,
		"-hide_banner",
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg writes duration info to stderr and exits non-zero with null output
	_ = cmd.Run()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return parseDuration(stderr.String())
}

// parseDuration extracts "Duration: HH:MM:SS.frac" from ffmpeg output.
func parseDuration(output string) (float64, error) {
	matches := durationRe.FindStringSubmatch(output)
	if len(matches) < 5 {
		return 0, fmt.Errorf("could not parse duration from ffmpeg output: %s", output)
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	frac, _ := strconv.ParseFloat("0."+matches[4], 64)

	return hours*3600 + minutes*60 + seconds + frac, nil
}

// Silences implements Converter.Silences using the silencedetect filter.
func (c *FFmpegConverter) Silences(ctx context.Context, path string, opts SilenceOpts) ([]Silence, error) {
	filter := fmt.Sprintf("silencedetect=noise=%ddB:d=%f",
		int(opts.ThreshDB),
		float64(opts.MinSilenceMs)/1000.0,
	)

	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-i", path,
		"-af", filter,
		"-f", "null",
		"-hide_banner",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// silencedetect reports on stderr
	_ = cmd.Run()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return parseSilenceOutput(stderr.String()), nil
}

// parseSilenceOutput pairs silence_start and silence_end lines.
func parseSilenceOutput(output string) []Silence {
	var intervals []Silence
	var start float64
	hasStart := false

	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); len(m) > 1 {
			val, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			start = max(val, 0)
			hasStart = true
		}

		if m := silenceEndRe.FindStringSubmatch(line); len(m) > 1 && hasStart {
			val, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			intervals = append(intervals, Silence{Start: start, End: val})
			hasStart = false
		}
	}

	return intervals
}

// TotalSilence sums the duration of all intervals.
func TotalSilence(intervals []Silence) float64 {
	var total float64
	for _, s := range intervals {
		total += s.Duration()
	}
	return total
}
