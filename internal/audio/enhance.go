package audio

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/maauso/summarize-api/internal/enhance"
)

// FileEnhancer runs the adaptive enhancer on WAV files.
type FileEnhancer struct {
	enhancer *enhance.Enhancer
	logger   *slog.Logger
}

// NewFileEnhancer creates a FileEnhancer.
func NewFileEnhancer(e *enhance.Enhancer, logger *slog.Logger) *FileEnhancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileEnhancer{enhancer: e, logger: logger}
}

// EnhancedPath returns the conventional output path for an enhanced copy of
// src inside dir: <dir>/<stem>_enhanced.wav.
func EnhancedPath(dir, src string) string {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(dir, stem+"_enhanced.wav")
}

// EnhanceFile reads the WAV at in, enhances it and writes a mono 16-bit WAV
// at out with the same sample rate. Aggressive mode forces the low-quality
// cascade.
func (f *FileEnhancer) EnhanceFile(ctx context.Context, in, out string, aggressive bool) (*enhance.Result, error) {
	sig, sampleRate, err := ReadWAV(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", enhance.ErrEnhancement, err)
	}

	override := enhance.OverrideNone
	if aggressive {
		override = enhance.OverrideForceLow
	}

	res, err := f.enhancer.Enhance(ctx, sig, sampleRate, override)
	if err != nil {
		return nil, err
	}

	if err := WriteWAV(out, res.Signal, sampleRate); err != nil {
		return nil, fmt.Errorf("%w: %w", enhance.ErrEnhancement, err)
	}

	f.logger.Info("audio enhanced",
		slog.String("input", in),
		slog.String("output", out),
		slog.String("tier", string(res.Tier)),
		slog.Int("stages", len(res.Stages)),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}
