package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantSignal(v float64) *Signal {
	var s Signal
	for i := range s {
		s[i] = v
	}
	return &s
}

func rampSignal() *Signal {
	var s Signal
	for i := range s {
		s[i] = float64(i)
	}
	return &s
}

func TestComputeIdentitySignals(t *testing.T) {
	sig := rampSignal()
	m := Compute(0.15, sig, sig)

	require.False(t, math.IsNaN(m.RecurrenceRate))
	assert.Greater(t, m.Determinism, 0.9)
	assert.GreaterOrEqual(t, m.MaxDiagLine, 100.0)
	assert.Equal(t, m.Epsilon, m.Determinism)
}

func TestComputeConstantSignals(t *testing.T) {
	s1 := constantSignal(1.0)
	s2 := constantSignal(1.0)

	m := Compute(0.15, s1, s2)

	assert.InDelta(t, 1.0, m.RecurrenceRate, 1e-9)
	assert.InDelta(t, 1.0, m.Determinism, 1e-9)
	assert.InDelta(t, 1.0, m.Laminarity, 1e-9)
	assert.Equal(t, float64(EmbedLengthConst()), m.MaxDiagLine)
	assert.InDelta(t, 1.0/float64(EmbedLengthConst()), m.Divergence, 1e-6)
}

func TestComputeUncorrelatedSignals(t *testing.T) {
	var s1, s2 Signal
	for i := range s1 {
		s1[i] = math.Sin(float64(i))
		s2[i] = math.Cos(float64(i)*0.7 + 1.3)
	}

	m := Compute(0.15, &s1, &s2)

	assert.Greater(t, m.RecurrenceRate, 0.0)
	assert.Less(t, m.RecurrenceRate, 0.1)
}

func TestComputeIsDeterministic(t *testing.T) {
	s1 := rampSignal()
	s2 := constantSignal(2.0)

	a := Compute(0.15, s1, s2)
	b := Compute(0.15, s1, s2)

	assert.Equal(t, a, b)
}

func TestComputeNeverProducesNonFinite(t *testing.T) {
	cases := []struct {
		name string
		s1   *Signal
		s2   *Signal
	}{
		{"both-zero", constantSignal(0), constantSignal(0)},
		{"ramp-vs-constant", rampSignal(), constantSignal(5)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := Compute(0.15, c.s1, c.s2)
			for _, v := range m.ToArray() {
				assert.False(t, math.IsNaN(v), "NaN in metric bundle")
				assert.False(t, math.IsInf(v, 0), "Inf in metric bundle")
			}
		})
	}
}

func TestComputeBounds(t *testing.T) {
	var s1, s2 Signal
	for i := range s1 {
		s1[i] = math.Sin(float64(i) * 0.3)
		s2[i] = math.Sin(float64(i)*0.3 + 0.5)
	}

	m := Compute(0.15, &s1, &s2)

	assert.LessOrEqual(t, m.Determinism, 1.0)
	assert.LessOrEqual(t, m.Laminarity, 1.0)
	assert.LessOrEqual(t, m.RecurrenceRate, 1.0)
	assert.GreaterOrEqual(t, m.Divergence, 0.0)
	assert.LessOrEqual(t, m.Divergence, 0.5)
}

func TestBundleArrayRoundTrip(t *testing.T) {
	m := MetricBundle{
		Epsilon: 1, RecurrenceRate: 2, Determinism: 3, Laminarity: 4,
		TrappingTime: 5, MaxDiagLine: 6, Divergence: 7, Entropy: 8,
	}
	assert.Equal(t, m, BundleFromArray(m.ToArray()))
}

// EmbedLengthConst exposes the package-level embed length constant for
// test assertions without re-deriving the arithmetic in the test file.
func EmbedLengthConst() int { return 502 }
