package enhance

import (
	"math"
	"math/rand"
)

func sine(freq, amp float64, sampleRate, n int) Signal {
	out := make(Signal, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func whiteNoise(std float64, n int, seed int64) Signal {
	rng := rand.New(rand.NewSource(seed))
	out := make(Signal, n)
	for i := range out {
		out[i] = rng.NormFloat64() * std
	}
	return out
}

func mix(signals ...Signal) Signal {
	out := make(Signal, len(signals[0]))
	for _, s := range signals {
		for i := range out {
			out[i] += s[i]
		}
	}
	return out
}

// noisySpeechLike builds the 440 Hz + white noise + 50 Hz hum scenario.
func noisySpeechLike(sampleRate, seconds int) Signal {
	n := sampleRate * seconds
	return mix(
		sine(440, 0.3, sampleRate, n),
		whiteNoise(0.15, n, 42),
		sine(50, 0.1, sampleRate, n),
	)
}

func energy(s Signal) float64 {
	var e float64
	for _, v := range s {
		e += v * v
	}
	return e
}
