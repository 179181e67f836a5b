package enhance

import "math"

const (
	// DefaultTargetDB is the RMS level Normalize scales to by default.
	DefaultTargetDB = -20.0
	// ClipLevel bounds the absolute sample value after normalization.
	ClipLevel = 0.95
)

// RMS returns the root mean square of the signal, or 0 when it is empty.
func RMS(sig Signal) float64 {
	if len(sig) == 0 {
		return 0
	}
	var sum float64
	for _, v := range sig {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(sig)))
}

// Normalize scales the signal so its RMS equals targetDB (dBFS) and hard
// clips the result to ±ClipLevel. Silent input is returned unchanged.
func Normalize(sig Signal, targetDB float64) Signal {
	rms := RMS(sig)
	if rms == 0 {
		return sig.Clone()
	}
	gain := math.Pow(10, targetDB/20) / rms
	out := make(Signal, len(sig))
	for i, v := range sig {
		out[i] = math.Max(-ClipLevel, math.Min(ClipLevel, v*gain))
	}
	return out
}
