package enhance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighPass_RejectsInvalidCutoff(t *testing.T) {
	sig := sine(440, 0.5, 16000, 1600)

	for _, cutoff := range []float64{8000, 9000, 0, -10} {
		_, err := HighPass(sig, 16000, cutoff)
		require.Error(t, err, "cutoff %v", cutoff)
		assert.ErrorIs(t, err, ErrInvalidCutoff)
	}
}

func TestHighPass_RejectsInvalidSignal(t *testing.T) {
	_, err := HighPass(Signal{}, 16000, 100)
	assert.ErrorIs(t, err, ErrInvalidSignal)
}

func TestHighPass_AttenuatesBelowCutoff(t *testing.T) {
	const sr = 16000
	hum := sine(50, 1, sr, sr)

	out, err := HighPass(hum, sr, 100)
	require.NoError(t, err)
	require.Len(t, out, len(hum))

	mid := func(s Signal) Signal { return s[sr/4 : 3*sr/4] }
	assert.Less(t, energy(mid(out))/energy(mid(hum)), 1e-3)
}

func TestHighPass_PassbandIsZeroPhase(t *testing.T) {
	const sr = 16000
	tone := sine(1000, 1, sr, sr)

	out, err := HighPass(tone, sr, 100)
	require.NoError(t, err)
	require.Len(t, out, len(tone))

	for i := sr / 4; i < 3*sr/4; i++ {
		require.InDelta(t, tone[i], out[i], 1e-4, "sample %d", i)
	}
}

func TestHighPass_DoesNotMutateInput(t *testing.T) {
	sig := sine(1000, 1, 16000, 2000)
	orig := sig.Clone()

	_, err := HighPass(sig, 16000, 100)
	require.NoError(t, err)
	assert.Equal(t, orig, sig)
}

func TestHighPass_TinySignals(t *testing.T) {
	for _, sig := range []Signal{{0.5}, {1, 2}, {0.1, 0.2, 0.3}} {
		out, err := HighPass(sig, 16000, 100)
		require.NoError(t, err)
		assert.Len(t, out, len(sig))
	}
}
