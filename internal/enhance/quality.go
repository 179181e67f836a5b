package enhance

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/stat"
)

// Analysis constants used by Assess. They are fixed so that reports are
// reproducible across runs and deployments.
const (
	AnalysisFrameLength = 2048
	AnalysisHopLength   = 512
	RolloffFraction     = 0.85
)

// Tier is the assessed quality class of a signal.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// rank orders tiers from worst to best.
func (t Tier) rank() int {
	switch t {
	case TierHigh:
		return 2
	case TierMedium:
		return 1
	default:
		return 0
	}
}

// QualityReport summarises spectral and energy features of a signal.
type QualityReport struct {
	Tier             Tier    `json:"tier"`
	SpectralRolloff  float64 `json:"spectral_rolloff"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	RMSEnergy        float64 `json:"rms_energy"`
}

// ClassifyTier applies the tier rule to averaged rolloff (Hz) and RMS energy.
// The first matching rule wins.
func ClassifyTier(rolloff, rms float64) Tier {
	switch {
	case rolloff > 4000 && rms > 0.01:
		return TierHigh
	case rolloff > 2000 && rms > 0.005:
		return TierMedium
	default:
		return TierLow
	}
}

// Assess computes the average spectral rolloff, zero-crossing rate and RMS
// energy over centred analysis frames and derives a quality tier.
//
// Frames are AnalysisFrameLength samples long with AnalysisHopLength hop and
// are centred on multiples of the hop, so a signal of n samples yields
// 1 + n/hop frames. Rolloff uses the Hann-windowed magnitude spectrum.
func Assess(sig Signal, sampleRate int) (QualityReport, error) {
	if err := validate(sig, sampleRate); err != nil {
		return QualityReport{}, err
	}

	rolloffs := frameRolloff(sig, sampleRate)
	zcrs := frameZeroCrossings(sig)
	rms := frameRMS(sig)

	report := QualityReport{
		SpectralRolloff:  stat.Mean(rolloffs, nil),
		ZeroCrossingRate: stat.Mean(zcrs, nil),
		RMSEnergy:        stat.Mean(rms, nil),
	}
	report.Tier = ClassifyTier(report.SpectralRolloff, report.RMSEnergy)
	return report, nil
}

func frameCount(n int) int {
	return 1 + n/AnalysisHopLength
}

// centredFrame copies the frame starting at padded offset start. Samples
// outside the signal come from pad.
func centredFrame(dst []float64, sig Signal, start int, pad func(i int) float64) {
	offset := start - AnalysisFrameLength/2
	for i := range dst {
		j := offset + i
		if j < 0 || j >= len(sig) {
			dst[i] = pad(j)
			continue
		}
		dst[i] = sig[j]
	}
}

func frameRolloff(sig Signal, sampleRate int) []float64 {
	// periodic Hann
	win := window.Hann(AnalysisFrameLength + 1)[:AnalysisFrameLength]
	zero := func(int) float64 { return 0 }

	bins := AnalysisFrameLength/2 + 1
	binHz := float64(sampleRate) / float64(AnalysisFrameLength)
	mag := make([]float64, bins)
	frame := make([]float64, AnalysisFrameLength)

	out := make([]float64, frameCount(len(sig)))
	for t := range out {
		centredFrame(frame, sig, t*AnalysisHopLength, zero)
		for i := range frame {
			frame[i] *= win[i]
		}
		spec := fft.FFTReal(frame)
		var total float64
		for k := 0; k < bins; k++ {
			mag[k] = cmplx.Abs(spec[k])
			total += mag[k]
		}
		threshold := RolloffFraction * total
		var cum float64
		for k := 0; k < bins; k++ {
			cum += mag[k]
			if cum >= threshold {
				out[t] = float64(k) * binHz
				break
			}
		}
	}
	return out
}

func frameZeroCrossings(sig Signal) []float64 {
	edge := func(j int) float64 {
		if j < 0 {
			return sig[0]
		}
		return sig[len(sig)-1]
	}
	frame := make([]float64, AnalysisFrameLength)
	out := make([]float64, frameCount(len(sig)))
	for t := range out {
		centredFrame(frame, sig, t*AnalysisHopLength, edge)
		crossings := 0
		for i := 1; i < len(frame); i++ {
			if math.Signbit(frame[i]) != math.Signbit(frame[i-1]) {
				crossings++
			}
		}
		out[t] = float64(crossings) / AnalysisFrameLength
	}
	return out
}

func frameRMS(sig Signal) []float64 {
	zero := func(int) float64 { return 0 }
	frame := make([]float64, AnalysisFrameLength)
	out := make([]float64, frameCount(len(sig)))
	for t := range out {
		centredFrame(frame, sig, t*AnalysisHopLength, zero)
		var sum float64
		for _, v := range frame {
			sum += v * v
		}
		out[t] = math.Sqrt(sum / AnalysisFrameLength)
	}
	return out
}
