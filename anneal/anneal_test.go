package anneal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkSchedule(t *testing.T, s Schedule, n int) {
	assert := assert.New(t)

	assert.Equal(n+2, s.Len())
	assert.Equal(n, s.Intermediate())
	assert.Equal(0.0, s.Beta(0))
	assert.Equal(1.0, s.Beta(n+1))
	for i := 1; i < s.Len(); i++ {
		assert.True(s.Beta(i) > s.Beta(i-1), "n=%d not increasing at %d: %v", n, i, s.Betas())
	}
}

func TestLinearSchedule(t *testing.T) {
	for n := 0; n < 50; n++ {
		s, err := NewSchedule(n, Linear{})
		require.NoError(t, err)
		checkSchedule(t, s, n)
	}

	s, err := NewSchedule(3, Linear{})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.25, 0.5, 0.75, 1.0}, s.Betas(), 1e-12)
}

func TestGeometricSchedule(t *testing.T) {
	for n := 0; n < 50; n++ {
		s, err := NewSchedule(n, Geometric{})
		require.NoError(t, err)
		checkSchedule(t, s, n)
	}

	s, err := NewSchedule(8, Geometric{})
	require.NoError(t, err)

	// Two points strictly below the knee, the rest spaced by a constant ratio
	assert.InDelta(t, 0.01/3, s.Beta(1), 1e-12)
	assert.InDelta(t, 0.02/3, s.Beta(2), 1e-12)
	assert.InDelta(t, 0.01, s.Beta(3), 1e-12)
	ratio := s.Beta(4) / s.Beta(3)
	for i := 4; i < 9; i++ {
		assert.InDelta(t, ratio, s.Beta(i+1)/s.Beta(i), 1e-9)
	}
}

func TestZeroIntermediate(t *testing.T) {
	for _, sp := range []Spacing{Linear{}, Geometric{}} {
		s, err := NewSchedule(0, sp)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 1}, s.Betas())
	}
}

type badSpacing []float64

func (b badSpacing) Betas(n int) []float64 { return b }

func TestScheduleErrors(t *testing.T) {
	assert := assert.New(t)

	var err error
	_, err = NewSchedule(-1, Linear{})
	assert.Error(err)
	_, err = NewSchedule(2, nil)
	assert.Error(err)
	_, err = NewSchedule(1, badSpacing{0, 1})
	assert.Error(err)
	_, err = NewSchedule(1, badSpacing{0.1, 0.5, 1})
	assert.Error(err)
	_, err = NewSchedule(1, badSpacing{0, 0.5, 0.9})
	assert.Error(err)
	_, err = NewSchedule(2, badSpacing{0, 0.5, 0.5, 1})
	assert.Error(err)
	_, err = NewSchedule(1, badSpacing{0, 0.5, 1})
	assert.NoError(err)
}

func TestScheduleIsImmutable(t *testing.T) {
	s, err := NewSchedule(2, Linear{})
	require.NoError(t, err)

	b := s.Betas()
	b[1] = 42
	assert.InDelta(t, 1.0/3.0, s.Beta(1), 1e-12)
}

func TestSpacingByName(t *testing.T) {
	assert := assert.New(t)

	sp, err := SpacingByName("linear")
	assert.NoError(err)
	assert.IsType(Linear{}, sp)

	sp, err = SpacingByName(" Geometric ")
	assert.NoError(err)
	assert.IsType(Geometric{}, sp)

	_, err = SpacingByName("cosine")
	assert.Error(err)
}

func TestAlphaPath(t *testing.T) {
	assert := assert.New(t)

	p, err := NewAlphaPath(1.0)
	require.NoError(t, err)

	assert.Equal(-3.0, p.LogProb(-3, -7, 0))
	assert.Equal(-7.0, p.LogProb(-3, -7, 1))
	assert.InDelta(-5.0, p.LogProb(-3, -7, 0.5), 1e-12)

	// Only the proposal term is scaled by alpha
	p2 := AlphaPath{Alpha: 2}
	assert.InDelta(-6.0, p2.LogProb(-3, -7, 0), 1e-12)
	assert.InDelta(-7.0, p2.LogProb(-3, -7, 1), 1e-12)
	assert.InDelta(0.5*2*-3+0.5*-7, p2.LogProb(-3, -7, 0.5), 1e-12)

	_, err = NewAlphaPath(math.NaN())
	assert.Error(err)
	_, err = NewAlphaPath(math.Inf(1))
	assert.Error(err)
}

func TestAlphaPathInfinities(t *testing.T) {
	assert := assert.New(t)

	p := AlphaPath{Alpha: 1}
	ninf := math.Inf(-1)

	// Zero coefficients never turn -Inf into NaN
	assert.Equal(-2.0, p.LogProb(-2, ninf, 0))
	assert.Equal(-2.0, p.LogProb(ninf, -2, 1))
	assert.True(math.IsInf(p.LogProb(ninf, ninf, 0.5), -1))
	assert.True(math.IsInf(p.LogProb(-1, ninf, 0.5), -1))
	assert.True(math.IsInf(p.LogProb(math.NaN(), -1, 0.5), -1))
	assert.True(math.IsInf(p.LogProb(ninf, math.Inf(1), 0.5), -1))

	assert.True(math.IsInf(p.Increment(ninf, ninf, 0.25, 0.5), -1))
	assert.True(math.IsInf(p.Increment(-1, ninf, 0, 0.5), -1))
	assert.True(math.IsInf(p.Increment(ninf, -1, 0.5, 1), -1))
	assert.InDelta(-0.5, p.Increment(-1, -2, 0.25, 0.75), 1e-12)
	assert.InDelta(-1.0, p.Increment(-1, -2, 0, 1), 1e-12)
}

func TestAlphaPathGrad(t *testing.T) {
	p := AlphaPath{Alpha: 2}
	gq := []float64{1, 2}
	gp := []float64{-1, 4}

	assert.InDeltaSlice(t, []float64{2, 4}, p.Grad(nil, gq, gp, 0), 1e-12)
	assert.InDeltaSlice(t, []float64{-1, 4}, p.Grad(nil, gq, gp, 1), 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 4}, p.Grad(nil, gq, gp, 0.5), 1e-12)

	// A zero coefficient ignores a non-finite gradient
	inf := []float64{math.Inf(1), math.NaN()}
	assert.InDeltaSlice(t, []float64{-1, 4}, p.Grad(nil, inf, gp, 1), 1e-12)
}

func TestIncrementExactWhenEqual(t *testing.T) {
	assert := assert.New(t)

	p := AlphaPath{Alpha: 1}
	betas := []float64{0, 0.1, 0.2, 0.7, 1}
	for _, v := range []float64{-0.3, -17.123456789, -1e6} {
		sum := 0.0
		for i := 0; i+1 < len(betas); i++ {
			sum += p.Increment(v, v, betas[i], betas[i+1])
		}
		assert.Equal(0.0, sum)
	}

	// Alpha scales only the proposal term
	assert.InDelta(0.5*(-2-2*-1.0), AlphaPath{Alpha: 2}.Increment(-1, -2, 0.25, 0.75), 1e-12)
	assert.Equal(-1.0, AlphaPath{Alpha: 0}.Increment(math.Inf(-1), -2, 0.5, 1))

	// Dispatch through the interface matches the concrete path
	var path Path = AlphaPath{Alpha: 2}
	assert.Equal(AlphaPath{Alpha: 2}.Increment(-1, -2, 0.25, 0.75), path.Increment(-1, -2, 0.25, 0.75))
	assert.True(math.IsInf(path.Increment(math.Inf(-1), -2, 0.25, 0.75), -1))
}
