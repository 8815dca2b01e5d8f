// Package problem reads annealing problem definitions: the proposal and
// target densities, the transition kernel, the sampler configuration and the
// settings for a CLI run.
package problem

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/CraigKelly/grais/density"
	"github.com/CraigKelly/grais/sampler"
)

// Reader implementors instantiate a problem from a byte stream
type Reader interface {
	ReadProblem(data []byte) (*Problem, error)
	WriteProblem(p *Problem) ([]byte, error)
}

// Problem is everything needed to run the annealed importance sampler
type Problem struct {
	Name     string        `yaml:"name"`
	Dim      int           `yaml:"dim"`
	Proposal density.Spec  `yaml:"proposal"`
	Target   density.Spec  `yaml:"target"`
	Kernel   KernelSection `yaml:"kernel"`
	AIS      AISSection    `yaml:"ais"`
	Run      RunSection    `yaml:"run"`
}

// KernelSection selects the transition kernel
type KernelSection struct {
	Name        string    `yaml:"name"`
	NOuterSteps int       `yaml:"n_outer_steps"`
	NLeapfrog   int       `yaml:"n_leapfrog"`
	StepSize    []float64 `yaml:"step_size"`
}

// AISSection mirrors sampler.Config
type AISSection struct {
	NIntermediate  int     `yaml:"n_intermediate"`
	Spacing        string  `yaml:"spacing"`
	Alpha          float64 `yaml:"alpha"`
	TargetAccept   float64 `yaml:"target_accept"`
	TuneStepSize   bool    `yaml:"tune_step_size"`
	ReplaceInvalid bool    `yaml:"replace_invalid"`
	Workers        int     `yaml:"workers"`
	AdaptRate      float64 `yaml:"adapt_rate"`
	MinStepSize    float64 `yaml:"min_step_size"`
	MaxStepSize    float64 `yaml:"max_step_size"`
}

// RunSection controls the outer loop of a CLI run
type RunSection struct {
	BatchSize  int     `yaml:"batch_size"`
	BurnIn     int     `yaml:"burn_in"`
	Window     int     `yaml:"window"`
	MaxPasses  int     `yaml:"max_passes"`
	Tolerance  float64 `yaml:"tolerance"`
	Replicates int     `yaml:"replicates"`
}

// Default returns a two dimensional standard normal problem with the
// sampler defaults. Problem files are read over the top of it.
func Default() *Problem {
	cfg := sampler.DefaultConfig()
	return &Problem{
		Name:     "default",
		Dim:      2,
		Proposal: density.Spec{Type: density.GAUSSIAN},
		Target:   density.Spec{Type: density.GAUSSIAN},
		Kernel: KernelSection{
			Name:        sampler.METROPOLIS,
			NOuterSteps: 1,
			NLeapfrog:   10,
			StepSize:    []float64{0.5},
		},
		AIS: AISSection{
			NIntermediate:  cfg.NIntermediate,
			Spacing:        cfg.Spacing,
			Alpha:          cfg.Alpha,
			TargetAccept:   cfg.TargetAccept,
			TuneStepSize:   cfg.TuneStepSize,
			ReplaceInvalid: cfg.ReplaceInvalid,
			Workers:        cfg.Workers,
			AdaptRate:      cfg.Adapter.Rate,
			MinStepSize:    cfg.Adapter.Min,
			MaxStepSize:    cfg.Adapter.Max,
		},
		Run: RunSection{
			BatchSize:  1000,
			BurnIn:     0,
			Window:     20,
			MaxPasses:  200,
			Tolerance:  1.0,
			Replicates: 8,
		},
	}
}

// NewProblemFromFile reads and checks the problem in filename
func NewProblemFromFile(r Reader, filename string) (*Problem, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ problem from %s", filename)
	}

	p, err := NewProblemFromBuffer(r, data)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE problem from %s", filename)
	}

	if p.Name == "" {
		p.Name = filepath.Base(filename)
	}
	return p, nil
}

// NewProblemFromBuffer reads and checks a problem from data
func NewProblemFromBuffer(r Reader, data []byte) (*Problem, error) {
	p, err := r.ReadProblem(data)
	if err != nil {
		return nil, err
	}
	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

// SamplerConfig converts the ais section
func (p *Problem) SamplerConfig() sampler.Config {
	return sampler.Config{
		NIntermediate:  p.AIS.NIntermediate,
		Spacing:        p.AIS.Spacing,
		Alpha:          p.AIS.Alpha,
		TargetAccept:   p.AIS.TargetAccept,
		TuneStepSize:   p.AIS.TuneStepSize,
		ReplaceInvalid: p.AIS.ReplaceInvalid,
		Workers:        p.AIS.Workers,
		Adapter: sampler.Adapter{
			Rate: p.AIS.AdaptRate,
			Min:  p.AIS.MinStepSize,
			Max:  p.AIS.MaxStepSize,
		},
	}
}

// KernelConfig converts the kernel section
func (p *Problem) KernelConfig() sampler.KernelConfig {
	return sampler.KernelConfig{
		Name:        p.Kernel.Name,
		NOuterSteps: p.Kernel.NOuterSteps,
		NLeapfrog:   p.Kernel.NLeapfrog,
		StepSize:    append([]float64{}, p.Kernel.StepSize...),
	}
}

// Densities builds the proposal and target
func (p *Problem) Densities() (density.Proposal, density.Density, error) {
	qd, err := p.Proposal.Build(p.Dim)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Invalid proposal")
	}
	q, ok := qd.(density.Proposal)
	if !ok {
		return nil, nil, errors.Errorf("Proposal %s (%T) cannot be sampled", p.Proposal.Type, qd)
	}

	target, err := p.Target.Build(p.Dim)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Invalid target")
	}
	return q, target, nil
}

// Sampler builds the densities and a sampler for them
func (p *Problem) Sampler() (sampler.Sampler, density.Proposal, density.Density, error) {
	q, target, err := p.Densities()
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := sampler.Build(p.KernelConfig(), p.SamplerConfig(), q, target)
	if err != nil {
		return nil, nil, nil, err
	}
	return s, q, target, nil
}

// Check builds everything once and verifies the run settings
func (p *Problem) Check() error {
	if p.Dim < 1 {
		return errors.Errorf("Problem dim must be positive, got %d", p.Dim)
	}
	if p.Run.BatchSize < 1 {
		return errors.Errorf("Batch size must be positive, got %d", p.Run.BatchSize)
	}
	if p.Run.BurnIn < 0 || p.Run.MaxPasses < 1 || p.Run.Window < 2 {
		return errors.Errorf("Invalid run settings burn_in=%d max_passes=%d window=%d",
			p.Run.BurnIn, p.Run.MaxPasses, p.Run.Window)
	}
	if !(p.Run.Tolerance > 0) {
		return errors.Errorf("Convergence tolerance must be positive, got %v", p.Run.Tolerance)
	}
	if p.Run.Replicates < 1 {
		return errors.Errorf("Replicates must be positive, got %d", p.Run.Replicates)
	}
	if len(p.Kernel.StepSize) != 1 && len(p.Kernel.StepSize) != p.Dim {
		return errors.Errorf("Kernel step_size needs 1 or %d entries, found %d", p.Dim, len(p.Kernel.StepSize))
	}

	_, _, _, err := p.Sampler()
	return err
}
