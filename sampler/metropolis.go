package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/grais/density"
	"github.com/CraigKelly/grais/rand"
)

// Metropolis is a random-walk Metropolis kernel with Gaussian proposals. It
// only needs log density values.
type Metropolis struct {
	NOuterSteps  int
	InitStepSize []float64
}

// NewMetropolis validates and returns a random-walk kernel
func NewMetropolis(nOuterSteps int, initStepSize []float64) (*Metropolis, error) {
	if nOuterSteps < 1 {
		return nil, configErrorf("Metropolis needs at least one outer step, got %d", nOuterSteps)
	}
	if err := checkInitStep(initStepSize); err != nil {
		return nil, err
	}

	m := &Metropolis{
		NOuterSteps:  nOuterSteps,
		InitStepSize: make([]float64, len(initStepSize)),
	}
	copy(m.InitStepSize, initStepSize)
	return m, nil
}

func checkInitStep(step []float64) error {
	if len(step) < 1 {
		return configErrorf("No initial step size")
	}
	for i, s := range step {
		if !(s > 0) || math.IsInf(s, 0) {
			return configErrorf("Initial step size[%d]=%v must be positive and finite", i, s)
		}
	}
	return nil
}

// Name implements Kernel
func (m *Metropolis) Name() string { return "metropolis" }

// InitState implements Kernel
func (m *Metropolis) InitState() KernelState {
	return KernelState{StepSize: m.InitStepSize}.Clone()
}

// Move implements Kernel
func (m *Metropolis) Move(b Batch, t Target[density.Density], st KernelState, key rand.Key, par Parallel) (Batch, float64, error) {
	n, dim := b.X.Dims()
	if err := st.Check(dim); err != nil {
		return Batch{}, 0, errors.Wrap(err, "Metropolis state")
	}

	out := b.Clone()
	accepts := make([]int, n)

	err := par.Each(n, func(i int) error {
		gen := key.Fold(uint64(i)).Generator()
		x := out.X.RawRowView(i)
		prop := make([]float64, dim)

		lq, lp := out.LogQ[i], out.LogP[i]
		cur := t.LogProb(lq, lp)

		for s := 0; s < m.NOuterSteps; s++ {
			gen.Normal(prop)
			for j := range prop {
				prop[j] = x[j] + st.At(j)*prop[j]
			}

			pq, pp := t.Eval(prop)
			next := t.LogProb(pq, pp)

			// NaN (both -Inf) compares false, so it is a rejection
			if math.Log(gen.Float64()) < next-cur {
				copy(x, prop)
				lq, lp, cur = pq, pp, next
				accepts[i]++
			}
		}

		out.LogQ[i], out.LogP[i] = lq, lp
		return nil
	})
	if err != nil {
		return Batch{}, 0, err
	}

	return out, acceptRate(accepts, n*m.NOuterSteps), nil
}

func acceptRate(accepts []int, total int) float64 {
	if total < 1 {
		return 0
	}
	sum := 0
	for _, a := range accepts {
		sum += a
	}
	return float64(sum) / float64(total)
}
