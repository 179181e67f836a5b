package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// OverlapFraction is the share of a segment that the next segment re-processes
// and crossfades over.
const OverlapFraction = 0.10

// DefaultWorkers returns the worker count used when none is configured: one
// less than the number of CPUs, at least 1.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

// segment is a transient window into the input signal.
type segment struct {
	start   int // inclusive, already extended backward by overlap
	end     int // exclusive
	overlap int // leading samples shared with the previous segment
}

// planSegments splits n samples into workers contiguous segments of
// n/workers samples. Every segment after the first starts overlap samples
// early. The last segment absorbs the remainder so the plan covers [0, n).
func planSegments(n, workers int) []segment {
	size := n / workers
	overlap := int(float64(size) * OverlapFraction)
	segs := make([]segment, workers)
	for i := range segs {
		start := i * size
		end := start + size
		if i == workers-1 {
			end = n
		}
		ov := 0
		if i > 0 {
			ov = overlap
		}
		segs[i] = segment{start: start - ov, end: end, overlap: ov}
	}
	return segs
}

// ChunkedReducer runs a NoiseReducer over overlapping segments of long
// signals in parallel and stitches the results with linear crossfades.
type ChunkedReducer struct {
	reducer NoiseReducer
	logger  *slog.Logger
}

// NewChunkedReducer creates a ChunkedReducer around the given transform.
func NewChunkedReducer(reducer NoiseReducer, logger *slog.Logger) *ChunkedReducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkedReducer{reducer: reducer, logger: logger}
}

// Reduce suppresses noise in sig. Signals shorter than two seconds are
// processed whole. Longer signals are split into workers segments (0 means
// DefaultWorkers) that are processed concurrently and merged in order.
//
// Any segment failure fails the whole call with ErrNoiseReduction; no
// partial result is returned. Cancelling ctx aborts outstanding segments.
func (c *ChunkedReducer) Reduce(ctx context.Context, sig Signal, sampleRate int, aggressiveness float64, stationary bool, workers int) (Signal, error) {
	if err := validate(sig, sampleRate); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoiseReduction, err)
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoiseReduction, err)
	}

	if len(sig) < 2*sampleRate || workers == 1 {
		out, err := c.reducer.Reduce(sig.Clone(), sampleRate, aggressiveness, stationary)
		if err != nil {
			return nil, wrapReduction(err)
		}
		return out, nil
	}

	workers = min(workers, len(sig))
	segs := planSegments(len(sig), workers)
	results := make([]Signal, len(segs))

	c.logger.Debug("reducing noise in segments",
		slog.Int("segments", len(segs)),
		slog.Int("overlap", segs[len(segs)-1].overlap),
		slog.Bool("stationary", stationary),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range segs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part := sig[s.start:s.end].Clone()
			out, err := c.reducer.Reduce(part, sampleRate, aggressiveness, stationary)
			if err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
			if len(out) != len(part) {
				return fmt.Errorf("segment %d: length %d, want %d", i, len(out), len(part))
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wrapReduction(err)
	}

	return mergeSegments(len(sig), segs, results), nil
}

// mergeSegments writes segments into a new signal in index order. The
// leading overlap of each segment after the first is blended linearly with
// what is already there, with the weight of the new segment ramping from 0
// to 1.
func mergeSegments(n int, segs []segment, results []Signal) Signal {
	out := make(Signal, n)
	for i, s := range segs {
		chunk := results[i]
		if i == 0 {
			copy(out[s.start:s.end], chunk)
			continue
		}
		ov := s.overlap
		for k := 0; k < ov; k++ {
			w := 1.0
			if ov > 1 {
				w = float64(k) / float64(ov-1)
			}
			j := s.start + k
			out[j] = out[j]*(1-w) + chunk[k]*w
		}
		copy(out[s.start+ov:s.end], chunk[ov:])
	}
	return out
}

func wrapReduction(err error) error {
	if errors.Is(err, ErrNoiseReduction) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNoiseReduction, err)
}
