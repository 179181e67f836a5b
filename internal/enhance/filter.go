package enhance

import (
	"fmt"
	"math"
)

// ButterworthOrder is the order of the high-pass filter applied by HighPass.
const ButterworthOrder = 4

// biquad is a normalized second-order section (a0 == 1).
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// highPassSections designs a Butterworth high-pass of the given even order as
// cascaded biquads using the bilinear transform pre-warped at the cutoff.
func highPassSections(order int, sampleRate int, cutoff float64) []biquad {
	w0 := 2 * math.Pi * cutoff / float64(sampleRate)
	cosw := math.Cos(w0)
	sinw := math.Sin(w0)

	sections := make([]biquad, 0, order/2)
	for k := 0; k < order/2; k++ {
		// Q of the k-th conjugate pole pair of the analog prototype.
		theta := math.Pi * float64(2*k+1) / float64(2*order)
		q := 1 / (2 * math.Cos(theta))
		alpha := sinw / (2 * q)
		a0 := 1 + alpha
		sections = append(sections, biquad{
			b0: (1 + cosw) / 2 / a0,
			b1: -(1 + cosw) / a0,
			b2: (1 + cosw) / 2 / a0,
			a1: -2 * cosw / a0,
			a2: (1 - alpha) / a0,
		})
	}
	return sections
}

// dcGain returns H(z=1).
func (s biquad) dcGain() float64 {
	den := 1 + s.a1 + s.a2
	if den == 0 {
		return 0
	}
	return (s.b0 + s.b1 + s.b2) / den
}

// run filters x in place (transposed direct form II) starting from the
// steady state that a constant input x0 would produce.
func (s biquad) run(x []float64, x0 float64) {
	yss := s.dcGain() * x0
	z2 := s.b2*x0 - s.a2*yss
	z1 := s.b1*x0 - s.a1*yss + z2
	for i, v := range x {
		y := s.b0*v + z1
		z1 = s.b1*v - s.a1*y + z2
		z2 = s.b2*v - s.a2*y
		x[i] = y
	}
}

// cascade filters x through all sections in order.
func cascade(sections []biquad, x []float64) {
	x0 := x[0]
	for _, s := range sections {
		next := s.dcGain() * x0
		s.run(x, x0)
		x0 = next
	}
}

// HighPass applies a zero-phase 4th-order Butterworth high-pass filter. The
// signal is extended at both ends by odd reflection, filtered forward and
// backward, then trimmed, so the output has the same length and alignment as
// the input.
func HighPass(sig Signal, sampleRate int, cutoffHz float64) (Signal, error) {
	if err := validate(sig, sampleRate); err != nil {
		return nil, err
	}
	nyquist := float64(sampleRate) / 2
	if cutoffHz <= 0 || cutoffHz >= nyquist || math.IsNaN(cutoffHz) {
		return nil, fmt.Errorf("%w: %.1f Hz with sample rate %d", ErrInvalidCutoff, cutoffHz, sampleRate)
	}

	sections := highPassSections(ButterworthOrder, sampleRate, cutoffHz)

	padLen := 3 * (ButterworthOrder + 1)
	if padLen > len(sig)-1 {
		padLen = len(sig) - 1
	}
	ext := oddExtend(sig, padLen)

	cascade(sections, ext)
	reverse(ext)
	cascade(sections, ext)
	reverse(ext)

	out := make(Signal, len(sig))
	copy(out, ext[padLen:padLen+len(sig)])
	return out, nil
}

// oddExtend reflects the signal about its end points by n samples each side.
func oddExtend(sig Signal, n int) []float64 {
	ext := make([]float64, len(sig)+2*n)
	first, last := sig[0], sig[len(sig)-1]
	for i := 0; i < n; i++ {
		ext[i] = 2*first - sig[n-i]
		ext[n+len(sig)+i] = 2*last - sig[len(sig)-2-i]
	}
	copy(ext[n:], sig)
	return ext
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
