package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/CraigKelly/grais/density"
	"github.com/CraigKelly/grais/rand"
)

// HMC is a Hamiltonian Monte Carlo kernel with identity mass matrix. The
// number of leapfrog steps is fixed; only the step size is tuned.
type HMC struct {
	NOuterSteps  int
	NLeapfrog    int
	InitStepSize []float64
}

// NewHMC validates and returns a Hamiltonian kernel
func NewHMC(nOuterSteps, nLeapfrog int, initStepSize []float64) (*HMC, error) {
	if nOuterSteps < 1 {
		return nil, configErrorf("HMC needs at least one outer step, got %d", nOuterSteps)
	}
	if nLeapfrog < 1 {
		return nil, configErrorf("HMC needs at least one leapfrog step, got %d", nLeapfrog)
	}
	if err := checkInitStep(initStepSize); err != nil {
		return nil, err
	}

	h := &HMC{
		NOuterSteps:  nOuterSteps,
		NLeapfrog:    nLeapfrog,
		InitStepSize: make([]float64, len(initStepSize)),
	}
	copy(h.InitStepSize, initStepSize)
	return h, nil
}

// Name implements Kernel
func (h *HMC) Name() string { return "hmc" }

// InitState implements Kernel
func (h *HMC) InitState() KernelState {
	return KernelState{StepSize: h.InitStepSize}.Clone()
}

// gradScratch holds per-particle buffers for tempered gradients
type gradScratch struct {
	gq, gp []float64
}

// temperedGrad writes the gradient of the tempered log density at x into dst
func temperedGrad(t Target[density.Differentiable], dst, x []float64, s *gradScratch) []float64 {
	t.Q.GradLogProb(s.gq, x)
	t.P.GradLogProb(s.gp, x)
	return t.Path.Grad(dst, s.gq, s.gp, t.Beta)
}

func kinetic(p []float64) float64 {
	return 0.5 * floats.Dot(p, p)
}

// Move implements Kernel
func (h *HMC) Move(b Batch, t Target[density.Differentiable], st KernelState, key rand.Key, par Parallel) (Batch, float64, error) {
	n, dim := b.X.Dims()
	if err := st.Check(dim); err != nil {
		return Batch{}, 0, errors.Wrap(err, "HMC state")
	}

	out := b.Clone()
	accepts := make([]int, n)

	err := par.Each(n, func(i int) error {
		gen := key.Fold(uint64(i)).Generator()
		x := out.X.RawRowView(i)

		scratch := &gradScratch{gq: make([]float64, dim), gp: make([]float64, dim)}
		pos := make([]float64, dim)
		mom := make([]float64, dim)
		grad := make([]float64, dim)

		lq, lp := out.LogQ[i], out.LogP[i]
		cur := t.LogProb(lq, lp)

		for s := 0; s < h.NOuterSteps; s++ {
			gen.Normal(mom)
			h0 := -cur + kinetic(mom)

			copy(pos, x)
			temperedGrad(t, grad, pos, scratch)

			// Leapfrog: half momentum, alternating full steps, half momentum
			for j := range mom {
				mom[j] += 0.5 * st.At(j) * grad[j]
			}
			for l := 0; l < h.NLeapfrog; l++ {
				for j := range pos {
					pos[j] += st.At(j) * mom[j]
				}
				temperedGrad(t, grad, pos, scratch)
				scale := 1.0
				if l == h.NLeapfrog-1 {
					scale = 0.5
				}
				for j := range mom {
					mom[j] += scale * st.At(j) * grad[j]
				}
			}

			pq, pp := t.Eval(pos)
			next := t.LogProb(pq, pp)
			h1 := -next + kinetic(mom)

			// Any NaN along the trajectory makes the comparison false
			if math.Log(gen.Float64()) < h0-h1 {
				copy(x, pos)
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

	return out, acceptRate(accepts, n*h.NOuterSteps), nil
}
