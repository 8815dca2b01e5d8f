package sampler

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/grais/anneal"
	"github.com/CraigKelly/grais/density"
)

// Kernel names accepted by Build
const (
	METROPOLIS  = "metropolis"
	HAMILTONIAN = "hmc"
)

// KernelConfig selects and parametrizes a transition kernel by name
type KernelConfig struct {
	Name        string
	NOuterSteps int
	NLeapfrog   int       // hmc only
	StepSize    []float64 // initial step size, 1 or dim entries
}

// Sampler is an annealed importance sampler whose kernel was chosen at run
// time. The densities passed to Step must have the capabilities that were
// checked when the Sampler was built.
type Sampler interface {
	Init(seed int64, batchSize int, q density.Proposal) (*mat.Dense, State, error)
	Step(x *mat.Dense, st State, logQ, logP density.Density) (*mat.Dense, []float64, State, Diagnostics, error)
	Schedule() anneal.Schedule
	Config() Config
	Kernel() string
}

// Build creates a Sampler from a kernel name. q and p are the densities the
// sampler will be used with; an HMC kernel requires both to be
// density.Differentiable and fails with ErrCapabilityMismatch otherwise.
// There is no fallback to a random-walk kernel.
func Build(kc KernelConfig, cfg Config, q, p density.Density) (Sampler, error) {
	switch strings.ToLower(strings.TrimSpace(kc.Name)) {
	case METROPOLIS, "":
		k, err := NewMetropolis(kc.NOuterSteps, kc.StepSize)
		if err != nil {
			return nil, err
		}
		ais, err := NewAIS[density.Density](k, cfg)
		if err != nil {
			return nil, err
		}
		return ais, nil

	case HAMILTONIAN:
		if err := requireGradient("proposal", q); err != nil {
			return nil, err
		}
		if err := requireGradient("target", p); err != nil {
			return nil, err
		}
		k, err := NewHMC(kc.NOuterSteps, kc.NLeapfrog, kc.StepSize)
		if err != nil {
			return nil, err
		}
		ais, err := NewAIS[density.Differentiable](k, cfg)
		if err != nil {
			return nil, err
		}
		return gradSampler{ais}, nil
	}

	return nil, configErrorf("Unknown kernel %q", kc.Name)
}

func requireGradient(role string, d density.Density) error {
	if _, ok := d.(density.Differentiable); !ok {
		return errors.Wrapf(ErrCapabilityMismatch, "HMC requires a gradient but the %s (%T) has none", role, d)
	}
	return nil
}

// gradSampler adapts AIS[density.Differentiable] to Sampler
type gradSampler struct {
	*AIS[density.Differentiable]
}

func (g gradSampler) Step(x *mat.Dense, st State, logQ, logP density.Density) (*mat.Dense, []float64, State, Diagnostics, error) {
	dq, okQ := logQ.(density.Differentiable)
	dp, okP := logP.(density.Differentiable)
	if !okQ || !okP {
		return nil, nil, State{}, nil, errors.Wrap(ErrCapabilityMismatch, "HMC step called with a density lacking a gradient")
	}
	return g.AIS.Step(x, st, dq, dp)
}
