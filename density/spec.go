package density

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/CraigKelly/grais/rand"
)

// Density type names accepted in a Spec
const (
	GAUSSIAN = "gaussian"
	MIXTURE  = "mixture"
	GMM      = "gmm"
)

// Spec describes a concrete density in a problem file.
type Spec struct {
	Type string `yaml:"type"`

	// gaussian
	Mean  []float64 `yaml:"mean,omitempty"`
	Scale []float64 `yaml:"scale,omitempty"`

	// mixture
	Components []Spec    `yaml:"components,omitempty"`
	Weights    []float64 `yaml:"weights,omitempty"`

	// gmm
	NMixes     int     `yaml:"n_mixes,omitempty"`
	LocScaling float64 `yaml:"loc_scaling,omitempty"`
	Seed       int64   `yaml:"seed,omitempty"`

	// Wrap the result in a finite-difference gradient
	NumericalGradient bool `yaml:"numerical_gradient,omitempty"`
}

// Build creates the density for dim dimensions. An empty Mean or Scale for a
// gaussian defaults to zeros or ones.
func (s Spec) Build(dim int) (Density, error) {
	d, err := s.build(dim)
	if err != nil {
		return nil, err
	}
	if d.Dim() != dim {
		return nil, errors.Errorf("Density %s has dim %d, problem dim is %d", s.Type, d.Dim(), dim)
	}
	if s.NumericalGradient {
		return NewNumerical(d), nil
	}
	return d, nil
}

func (s Spec) build(dim int) (Density, error) {
	switch strings.ToLower(s.Type) {
	case GAUSSIAN, "":
		return s.gaussian(dim)

	case MIXTURE:
		comps := make([]*Gaussian, len(s.Components))
		for i, cs := range s.Components {
			g, err := cs.gaussian(dim)
			if err != nil {
				return nil, errors.Wrapf(err, "Mixture component %d", i)
			}
			comps[i] = g
		}
		return NewMixture(comps, s.Weights)

	case GMM:
		return NewGMM(dim, s.NMixes, s.LocScaling, rand.NewKey(s.Seed))
	}

	return nil, errors.Errorf("Unknown density type %q", s.Type)
}

func (s Spec) gaussian(dim int) (*Gaussian, error) {
	if t := strings.ToLower(s.Type); t != GAUSSIAN && t != "" {
		return nil, errors.Errorf("Expected a gaussian, found %q", s.Type)
	}

	mean := s.Mean
	if len(mean) == 0 {
		mean = make([]float64, dim)
	}
	scale := s.Scale
	if len(scale) == 0 {
		scale = make([]float64, dim)
		for i := range scale {
			scale[i] = 1.0
		}
	}

	return NewGaussian(mean, scale)
}
