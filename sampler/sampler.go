package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/grais/anneal"
	"github.com/CraigKelly/grais/density"
	"github.com/CraigKelly/grais/rand"
)

// Errors reported at construction time. Use errors.Cause (or errors.Is) to
// check the kind.
var (
	ErrConfiguration      = errors.New("invalid sampler configuration")
	ErrCapabilityMismatch = errors.New("density lacks a capability the kernel requires")
)

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// KernelState holds the tunable parameters of a transition kernel. A single
// entry is a scalar step size; Dim() entries give a per-dimension step.
type KernelState struct {
	StepSize []float64 `yaml:"step_size" json:"step_size"`
}

// Clone returns a deep copy
func (k KernelState) Clone() KernelState {
	cp := KernelState{StepSize: make([]float64, len(k.StepSize))}
	copy(cp.StepSize, k.StepSize)
	return cp
}

// Check returns an error if the state can not drive a kernel in dim
// dimensions
func (k KernelState) Check(dim int) error {
	if len(k.StepSize) != 1 && len(k.StepSize) != dim {
		return errors.Errorf("Step size has %d entries, need 1 or %d", len(k.StepSize), dim)
	}
	for i, s := range k.StepSize {
		if !(s > 0) || math.IsInf(s, 0) {
			return errors.Errorf("Step size[%d]=%v must be positive and finite", i, s)
		}
	}
	return nil
}

// At returns the step size for dimension j
func (k KernelState) At(j int) float64 {
	if len(k.StepSize) == 1 {
		return k.StepSize[0]
	}
	return k.StepSize[j]
}

// Mean is the average step size (used for reporting)
func (k KernelState) Mean() float64 {
	if len(k.StepSize) == 0 {
		return 0
	}
	var s float64
	for _, v := range k.StepSize {
		s += v
	}
	return s / float64(len(k.StepSize))
}

// Batch is a particle batch together with the proposal and target log
// densities at each particle.
type Batch struct {
	X    *mat.Dense
	LogQ []float64
	LogP []float64
}

// Len is the particle count
func (b Batch) Len() int {
	r, _ := b.X.Dims()
	return r
}

// Clone returns a deep copy
func (b Batch) Clone() Batch {
	cp := Batch{
		X:    mat.DenseCopyOf(b.X),
		LogQ: make([]float64, len(b.LogQ)),
		LogP: make([]float64, len(b.LogP)),
	}
	copy(cp.LogQ, b.LogQ)
	copy(cp.LogP, b.LogP)
	return cp
}

// valid is true when the particle's position and log densities are finite
func (b Batch) valid(i int) bool {
	if !isFinite(b.LogQ[i]) || !isFinite(b.LogP[i]) {
		return false
	}
	for _, v := range b.X.RawRowView(i) {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Target is the tempered density a kernel must leave invariant:
// Path.LogProb(Q(x), P(x), Beta).
type Target[D density.Density] struct {
	Q    D
	P    D
	Beta float64
	Path anneal.Path
}

// Eval returns the proposal and target log densities at x
func (t Target[D]) Eval(x []float64) (logQ, logP float64) {
	return t.Q.LogProb(x), t.P.LogProb(x)
}

// LogProb is the tempered log density given already evaluated terms
func (t Target[D]) LogProb(logQ, logP float64) float64 {
	return t.Path.LogProb(logQ, logP, t.Beta)
}

// A Kernel advances every particle of a batch by one Markov transition that
// leaves the target invariant. The type parameter is the capability the
// kernel needs from its densities: density.Density for random-walk moves,
// density.Differentiable for gradient-based moves.
//
// Move must not modify its input batch and must be a deterministic function
// of its arguments (all randomness comes from key). It returns the moved
// batch and the mean acceptance rate.
type Kernel[D density.Density] interface {
	Name() string
	InitState() KernelState
	Move(b Batch, t Target[D], st KernelState, key rand.Key, par Parallel) (Batch, float64, error)
}
