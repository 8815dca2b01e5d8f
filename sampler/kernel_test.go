package sampler

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/grais/anneal"
	"github.com/CraigKelly/grais/density"
	"github.com/CraigKelly/grais/rand"
)

func stdBatch(t *testing.T, dim, n int, seed int64) Batch {
	g := density.StandardGaussian(dim)
	x := g.Sample(rand.NewKey(seed).Generator(), n)
	b, err := evaluate[density.Density](x, g, g, Parallel{})
	require.NoError(t, err)
	return b
}

func stdTarget(dim int) Target[density.Density] {
	g := density.StandardGaussian(dim)
	return Target[density.Density]{Q: g, P: g, Beta: 1, Path: anneal.AlphaPath{Alpha: 1}}
}

func TestMetropolisAcceptanceLimits(t *testing.T) {
	assert := assert.New(t)

	b := stdBatch(t, 2, 1000, 1)
	tgt := stdTarget(2)

	rates := make([]float64, 0)
	for _, step := range []float64{1e-8, 0.1, 1.0, 10.0, 1e6} {
		k, err := NewMetropolis(2, []float64{step})
		require.NoError(t, err)

		_, acc, err := k.Move(b, tgt, k.InitState(), rand.NewKey(2), Parallel{})
		require.NoError(t, err)
		assert.True(acc >= 0 && acc <= 1, "acceptance %v out of range", acc)
		rates = append(rates, acc)
	}

	assert.True(rates[0] > 0.99, "tiny steps should almost always accept: %v", rates)
	assert.True(rates[4] < 0.01, "huge steps should almost never accept: %v", rates)
	for i := 1; i < len(rates); i++ {
		assert.True(rates[i] <= rates[i-1]+0.02, "acceptance should fall with step size: %v", rates)
	}
}

func TestMetropolisDoesNotMutateInput(t *testing.T) {
	assert := assert.New(t)

	b := stdBatch(t, 3, 100, 3)
	before := b.Clone()

	k, err := NewMetropolis(3, []float64{0.5})
	require.NoError(t, err)
	st := k.InitState()
	out, _, err := k.Move(b, stdTarget(3), st, rand.NewKey(4), Parallel{})
	require.NoError(t, err)

	assert.True(mat.Equal(before.X, b.X))
	assert.Equal(before.LogQ, b.LogQ)
	assert.Equal(before.LogP, b.LogP)
	assert.False(mat.Equal(out.X, b.X))
	assert.Equal([]float64{0.5}, st.StepSize)

	// Cached log densities follow the particles
	g := density.StandardGaussian(3)
	for i := 0; i < out.Len(); i++ {
		assert.InDelta(g.LogProb(out.X.RawRowView(i)), out.LogP[i], 1e-12)
	}
}

func TestMetropolisReproducible(t *testing.T) {
	assert := assert.New(t)

	b := stdBatch(t, 2, 500, 5)
	k, err := NewMetropolis(4, []float64{0.7, 0.3})
	require.NoError(t, err)

	out1, acc1, err := k.Move(b, stdTarget(2), k.InitState(), rand.NewKey(6), Parallel{Workers: 1})
	require.NoError(t, err)
	out2, acc2, err := k.Move(b, stdTarget(2), k.InitState(), rand.NewKey(6), Parallel{Workers: 7})
	require.NoError(t, err)

	assert.Equal(acc1, acc2)
	assert.True(mat.Equal(out1.X, out2.X))

	out3, _, err := k.Move(b, stdTarget(2), k.InitState(), rand.NewKey(7), Parallel{})
	require.NoError(t, err)
	assert.False(mat.Equal(out1.X, out3.X))
}

func checkStationary(t *testing.T, x *mat.Dense) {
	r, c := x.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, variance := stat.MeanVariance(col, nil)
		assert.InDelta(t, 0.0, mean, 0.12, "dim %d mean", j)
		assert.InDelta(t, 1.0, variance, 0.15, "dim %d variance", j)
	}
}

func TestMetropolisLeavesTargetInvariant(t *testing.T) {
	b := stdBatch(t, 2, 2000, 8)
	k, err := NewMetropolis(20, []float64{1.0})
	require.NoError(t, err)

	out, _, err := k.Move(b, stdTarget(2), k.InitState(), rand.NewKey(9), Parallel{})
	require.NoError(t, err)
	checkStationary(t, out.X)
}

func TestHMCLeavesTargetInvariant(t *testing.T) {
	assert := assert.New(t)

	g := density.StandardGaussian(2)
	x := g.Sample(rand.NewKey(10).Generator(), 2000)
	b, err := evaluate[density.Differentiable](x, g, g, Parallel{})
	require.NoError(t, err)

	tgt := Target[density.Differentiable]{Q: g, P: g, Beta: 1, Path: anneal.AlphaPath{Alpha: 1}}

	k, err := NewHMC(5, 5, []float64{0.3})
	require.NoError(t, err)
	out, acc, err := k.Move(b, tgt, k.InitState(), rand.NewKey(11), Parallel{})
	require.NoError(t, err)

	assert.True(acc > 0.8, "HMC on a Gaussian with a small step should accept most moves: %v", acc)
	checkStationary(t, out.X)
}

func TestHMCMovesTowardTarget(t *testing.T) {
	assert := assert.New(t)

	// Start far from the target mode; the tempered density at beta=1 is the
	// target alone, so the particles should drift to it.
	q, err := density.NewGaussian([]float64{4, 4}, []float64{0.5, 0.5})
	require.NoError(t, err)
	p := density.StandardGaussian(2)

	x := q.Sample(rand.NewKey(12).Generator(), 1000)
	b, err := evaluate[density.Differentiable](x, q, p, Parallel{})
	require.NoError(t, err)

	tgt := Target[density.Differentiable]{Q: q, P: p, Beta: 1, Path: anneal.AlphaPath{Alpha: 1}}
	k, err := NewHMC(30, 10, []float64{0.2})
	require.NoError(t, err)
	out, _, err := k.Move(b, tgt, k.InitState(), rand.NewKey(13), Parallel{})
	require.NoError(t, err)

	checkStationary(t, out.X)
	assert.Equal(1000, out.Len())
}

func TestHMCRejectsNonFinite(t *testing.T) {
	assert := assert.New(t)

	g := density.StandardGaussian(1)
	// Gradient blows up: every trajectory is NaN and must be rejected
	bad := density.GradFunc{
		D:    1,
		F:    g.LogProb,
		Grad: func(dst, x []float64) []float64 { dst[0] = math.NaN(); return dst },
	}

	x := g.Sample(rand.NewKey(14).Generator(), 50)
	b, err := evaluate[density.Differentiable](x, bad, bad, Parallel{})
	require.NoError(t, err)

	tgt := Target[density.Differentiable]{Q: bad, P: bad, Beta: 0.5, Path: anneal.AlphaPath{Alpha: 1}}
	k, err := NewHMC(2, 3, []float64{0.1})
	require.NoError(t, err)
	out, acc, err := k.Move(b, tgt, k.InitState(), rand.NewKey(15), Parallel{})
	require.NoError(t, err)

	assert.Equal(0.0, acc)
	assert.True(mat.Equal(b.X, out.X))
}

func TestKernelConstructionErrors(t *testing.T) {
	assert := assert.New(t)

	var err error
	_, err = NewMetropolis(0, []float64{1})
	assert.Equal(ErrConfiguration, errors.Cause(err))
	_, err = NewMetropolis(1, nil)
	assert.Equal(ErrConfiguration, errors.Cause(err))
	_, err = NewMetropolis(1, []float64{-1})
	assert.Equal(ErrConfiguration, errors.Cause(err))
	_, err = NewMetropolis(1, []float64{math.Inf(1)})
	assert.Equal(ErrConfiguration, errors.Cause(err))
	_, err = NewHMC(1, 0, []float64{1})
	assert.Equal(ErrConfiguration, errors.Cause(err))
	_, err = NewHMC(0, 1, []float64{1})
	assert.Equal(ErrConfiguration, errors.Cause(err))
	_, err = NewHMC(1, 1, []float64{0})
	assert.Equal(ErrConfiguration, errors.Cause(err))
}

func TestKernelStateCheck(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(KernelState{StepSize: []float64{0.1}}.Check(3))
	assert.NoError(KernelState{StepSize: []float64{0.1, 0.2, 0.3}}.Check(3))
	assert.Error(KernelState{StepSize: []float64{0.1, 0.2}}.Check(3))
	assert.Error(KernelState{}.Check(3))
	assert.Error(KernelState{StepSize: []float64{math.NaN()}}.Check(3))

	ks := KernelState{StepSize: []float64{1, 3}}
	assert.Equal(1.0, ks.At(0))
	assert.Equal(3.0, ks.At(1))
	assert.Equal(2.0, ks.Mean())

	cp := ks.Clone()
	cp.StepSize[0] = 99
	assert.Equal(1.0, ks.StepSize[0])

	b := stdBatch(t, 2, 10, 16)
	k, _ := NewMetropolis(1, []float64{1})
	_, _, err := k.Move(b, stdTarget(2), KernelState{StepSize: []float64{1, 1, 1}}, rand.NewKey(1), Parallel{})
	assert.Error(err)
}

var errParticle = errors.New("particle failed")

func TestParallelEach(t *testing.T) {
	assert := assert.New(t)

	for _, workers := range []int{0, 1, 3, 16} {
		out := make([]int, 1000)
		err := Parallel{Workers: workers}.Each(len(out), func(i int) error {
			out[i] = i * i
			return nil
		})
		assert.NoError(err)
		for i, v := range out {
			assert.Equal(i*i, v)
		}
	}

	err := Parallel{Workers: 4}.Each(1000, func(i int) error {
		if i == 777 {
			return errParticle
		}
		return nil
	})
	assert.Equal(errParticle, err)
}
