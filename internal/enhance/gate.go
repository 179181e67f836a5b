package enhance

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// NoiseReducer suppresses noise in a whole signal. Implementations must be
// deterministic and safe for concurrent use on distinct signals.
type NoiseReducer interface {
	Reduce(sig Signal, sampleRate int, propDecrease float64, stationary bool) (Signal, error)
}

// Compile-time check that SpectralGate implements NoiseReducer.
var _ NoiseReducer = SpectralGate{}

// SpectralGate is a spectral-gating noise reducer. Time-frequency cells whose
// energy stays below a noise threshold are attenuated by propDecrease.
//
// In stationary mode the threshold of each frequency bin is derived from the
// mean and deviation of its level over the whole signal. In non-stationary
// mode a noise floor is tracked over time as the running minimum of the
// smoothed bin power, and cells must exceed it by MarginDB to pass.
type SpectralGate struct {
	FFTSize int
	HopSize int
	// StdThreshold is the number of standard deviations above the mean level
	// a bin must reach to pass in stationary mode.
	StdThreshold float64
	// MarginDB is the level above the tracked floor required in non-stationary mode.
	MarginDB float64
	// SmoothingSeconds is the time span of the power smoothing window.
	SmoothingSeconds float64
	// FloorSeconds is the time span over which the noise floor minimum is taken.
	FloorSeconds float64
	// MaskFrames and MaskBins size the box filter that softens the gate mask.
	MaskFrames int
	MaskBins   int
}

// DefaultSpectralGate returns the gate used by the enhancement cascade.
func DefaultSpectralGate() SpectralGate {
	return SpectralGate{
		FFTSize:          1024,
		HopSize:          256,
		StdThreshold:     1.5,
		MarginDB:         6,
		SmoothingSeconds: 0.25,
		FloorSeconds:     1.5,
		MaskFrames:       3,
		MaskBins:         3,
	}
}

// Reduce implements NoiseReducer.
func (g SpectralGate) Reduce(sig Signal, sampleRate int, propDecrease float64, stationary bool) (Signal, error) {
	if err := validate(sig, sampleRate); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoiseReduction, err)
	}
	if propDecrease < 0 || propDecrease > 1 || math.IsNaN(propDecrease) {
		return nil, fmt.Errorf("%w: aggressiveness %.2f outside [0, 1]", ErrNoiseReduction, propDecrease)
	}
	if g.FFTSize <= 0 || g.HopSize <= 0 || g.HopSize > g.FFTSize/2 {
		return nil, fmt.Errorf("%w: fft size %d with hop %d", ErrNoiseReduction, g.FFTSize, g.HopSize)
	}

	spec := g.stft(sig)

	var mask [][]float64
	if stationary {
		mask = g.stationaryMask(spec)
	} else {
		mask = g.nonStationaryMask(spec, sampleRate)
	}
	mask = boxSmooth(mask, g.MaskFrames, g.MaskBins)

	for t := range spec {
		for k := range spec[t] {
			gain := 1 - propDecrease*(1-mask[t][k])
			spec[t][k] *= complex(gain, 0)
		}
	}

	out := g.istft(spec, len(sig))
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite output at index %d", ErrNoiseReduction, i)
		}
	}
	return out, nil
}

func (g SpectralGate) window() []float64 {
	return window.Hann(g.FFTSize + 1)[:g.FFTSize]
}

// stft returns centred, zero-padded short-time spectra (frames x bins).
func (g SpectralGate) stft(sig Signal) [][]complex128 {
	n, hop := g.FFTSize, g.HopSize
	frames := 1 + len(sig)/hop
	padded := make([]float64, frames*hop+n)
	copy(padded[n/2:], sig)

	win := g.window()
	fft := fourier.NewFFT(n)
	frame := make([]float64, n)
	spec := make([][]complex128, frames)
	for t := range spec {
		seg := padded[t*hop : t*hop+n]
		for i := range frame {
			frame[i] = seg[i] * win[i]
		}
		spec[t] = fft.Coefficients(nil, frame)
	}
	return spec
}

// istft inverts stft by weighted overlap-add and trims to length samples.
func (g SpectralGate) istft(spec [][]complex128, length int) Signal {
	n, hop := g.FFTSize, g.HopSize
	win := g.window()
	fft := fourier.NewFFT(n)

	acc := make([]float64, len(spec)*hop+n)
	norm := make([]float64, len(acc))
	frame := make([]float64, n)
	for t := range spec {
		fft.Sequence(frame, spec[t])
		base := t * hop
		for i := range frame {
			// Sequence is unnormalized.
			acc[base+i] += frame[i] / float64(n) * win[i]
			norm[base+i] += win[i] * win[i]
		}
	}

	out := make(Signal, length)
	for i := range out {
		j := i + n/2
		if norm[j] > 1e-10 {
			out[i] = acc[j] / norm[j]
		}
	}
	return out
}

func levelDB(c complex128) float64 {
	return 20 * math.Log10(cmplx.Abs(c)+1e-10)
}

func (g SpectralGate) stationaryMask(spec [][]complex128) [][]float64 {
	frames, bins := len(spec), len(spec[0])
	mask := newMatrix(frames, bins)
	levels := make([]float64, frames)
	for k := 0; k < bins; k++ {
		for t := 0; t < frames; t++ {
			levels[t] = levelDB(spec[t][k])
		}
		mean, std := stat.MeanStdDev(levels, nil)
		if frames < 2 {
			std = 0
		}
		threshold := mean + g.StdThreshold*std
		for t := 0; t < frames; t++ {
			if levels[t] > threshold {
				mask[t][k] = 1
			}
		}
	}
	return mask
}

func (g SpectralGate) nonStationaryMask(spec [][]complex128, sampleRate int) [][]float64 {
	frames, bins := len(spec), len(spec[0])
	framesPerSecond := float64(sampleRate) / float64(g.HopSize)
	smoothSpan := max(1, int(g.SmoothingSeconds*framesPerSecond))
	floorSpan := max(1, int(g.FloorSeconds*framesPerSecond))
	margin := math.Pow(10, g.MarginDB/10)

	mask := newMatrix(frames, bins)
	power := make([]float64, frames)
	smoothed := make([]float64, frames)
	for k := 0; k < bins; k++ {
		for t := 0; t < frames; t++ {
			a := cmplx.Abs(spec[t][k])
			power[t] = a * a
		}
		movingAverage(smoothed, power, smoothSpan)
		for t := 0; t < frames; t++ {
			lo, hi := centredSpan(t, floorSpan, frames)
			floor := smoothed[lo]
			for i := lo + 1; i < hi; i++ {
				floor = math.Min(floor, smoothed[i])
			}
			if power[t] > floor*margin {
				mask[t][k] = 1
			}
		}
	}
	return mask
}

// movingAverage writes the centred moving average of src into dst.
func movingAverage(dst, src []float64, span int) {
	prefix := make([]float64, len(src)+1)
	for i, v := range src {
		prefix[i+1] = prefix[i] + v
	}
	for t := range src {
		lo, hi := centredSpan(t, span, len(src))
		dst[t] = (prefix[hi] - prefix[lo]) / float64(hi-lo)
	}
}

// centredSpan returns the half-open index range of a window of the given
// span centred at t, clamped to [0, n).
func centredSpan(t, span, n int) (int, int) {
	lo := t - span/2
	hi := lo + span
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

// boxSmooth averages each cell over a frames x bins neighbourhood.
func boxSmooth(m [][]float64, frames, bins int) [][]float64 {
	if frames <= 1 && bins <= 1 {
		return m
	}
	rows, cols := len(m), len(m[0])
	out := newMatrix(rows, cols)
	for t := 0; t < rows; t++ {
		tlo, thi := centredSpan(t, frames, rows)
		for k := 0; k < cols; k++ {
			klo, khi := centredSpan(k, bins, cols)
			var sum float64
			for i := tlo; i < thi; i++ {
				for j := klo; j < khi; j++ {
					sum += m[i][j]
				}
			}
			out[t][k] = sum / float64((thi-tlo)*(khi-klo))
		}
	}
	return out
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}
