// Package enhance implements adaptive speech enhancement for mono PCM signals:
// quality assessment, zero-phase high-pass filtering, chunked spectral-gating
// noise reduction and level normalization.
//
// Every operation returns a new Signal and never mutates its input, so the
// stages can be chained freely by the caller.
package enhance

import (
	"errors"
	"fmt"
	"math"
)

// Error taxonomy for the enhancement subsystem. Callers match with errors.Is.
var (
	// ErrInvalidSignal is returned for empty or non-finite input, or a non-positive sample rate.
	ErrInvalidSignal = errors.New("enhance: invalid signal")
	// ErrInvalidCutoff is returned when a filter cutoff violates 0 < cutoff < sampleRate/2.
	ErrInvalidCutoff = errors.New("enhance: invalid cutoff frequency")
	// ErrNoiseReduction is returned when the suppression transform fails on any segment.
	ErrNoiseReduction = errors.New("enhance: noise reduction failed")
	// ErrEnhancement is returned when any stage of the adaptive cascade fails.
	ErrEnhancement = errors.New("enhance: enhancement failed")
)

// Signal is a sequence of mono samples. The sample rate travels alongside it.
type Signal []float64

// Clone returns a copy of the signal.
func (s Signal) Clone() Signal {
	out := make(Signal, len(s))
	copy(out, s)
	return out
}

// Peak returns the maximum absolute sample value.
func (s Signal) Peak() float64 {
	var peak float64
	for _, v := range s {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// validate checks the preconditions shared by all operations.
func validate(sig Signal, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidSignal, sampleRate)
	}
	if len(sig) == 0 {
		return fmt.Errorf("%w: empty signal", ErrInvalidSignal)
	}
	for i, v := range sig {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite sample at index %d", ErrInvalidSignal, i)
		}
	}
	return nil
}
