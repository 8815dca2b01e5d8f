// Package anneal builds temperature schedules and the tempered log densities
// that interpolate from a proposal to a target.
package anneal

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Spacing names accepted by SpacingByName
const (
	LINEAR    = "linear"
	GEOMETRIC = "geometric"
)

// A Spacing produces the n+2 coefficients for n intermediate distributions.
// The result must start at exactly 0, end at exactly 1 and be strictly
// increasing; NewSchedule checks this.
type Spacing interface {
	Betas(n int) []float64
}

// Linear spacing: beta_i = i/(n+1)
type Linear struct{}

// Betas implements Spacing
func (Linear) Betas(n int) []float64 {
	betas := floats.Span(make([]float64, n+2), 0, 1)
	betas[n+1] = 1.0
	return betas
}

// Geometric puts a quarter of the intermediate points linearly in [0, 0.01)
// and the rest geometrically from 0.01 up to 1. This spends most of the
// schedule near the proposal, where the tempered density changes fastest.
type Geometric struct{}

// Betas implements Spacing
func (Geometric) Betas(n int) []float64 {
	if n == 0 {
		return []float64{0, 1}
	}

	const knee = 0.01
	nLin := n / 4
	nGeom := n - nLin - 1

	// nLin+1 points in [0, knee), then nGeom+2 points from knee to 1
	lin := floats.Span(make([]float64, nLin+2), 0, knee)
	geom := floats.LogSpan(make([]float64, nGeom+2), knee, 1)
	betas := append(lin[:nLin+1], geom...)

	betas[0] = 0.0
	betas[len(betas)-1] = 1.0
	return betas
}

// SpacingByName returns the named spacing policy
func SpacingByName(name string) (Spacing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LINEAR, "":
		return Linear{}, nil
	case GEOMETRIC:
		return Geometric{}, nil
	}
	return nil, errors.Errorf("Unknown spacing type %q", name)
}

// Schedule is an immutable sequence of annealing coefficients
type Schedule struct {
	betas []float64
}

// NewSchedule returns the schedule for n intermediate distributions
func NewSchedule(n int, s Spacing) (Schedule, error) {
	if n < 0 {
		return Schedule{}, errors.Errorf("Invalid number of intermediate distributions %d", n)
	}
	if s == nil {
		return Schedule{}, errors.Errorf("No spacing policy supplied")
	}

	betas := s.Betas(n)
	if len(betas) != n+2 {
		return Schedule{}, errors.Errorf("Spacing returned %d coefficients, expected %d", len(betas), n+2)
	}
	if betas[0] != 0.0 || betas[n+1] != 1.0 {
		return Schedule{}, errors.Errorf("Schedule must start at 0 and end at 1, got %v and %v", betas[0], betas[n+1])
	}
	for i := 1; i < len(betas); i++ {
		if !(betas[i] > betas[i-1]) {
			return Schedule{}, errors.Errorf("Schedule not strictly increasing at %d: %v <= %v", i, betas[i], betas[i-1])
		}
	}

	cp := make([]float64, len(betas))
	copy(cp, betas)
	return Schedule{betas: cp}, nil
}

// Len is the number of coefficients (intermediate count + 2)
func (s Schedule) Len() int { return len(s.betas) }

// Intermediate is the number of intermediate distributions
func (s Schedule) Intermediate() int { return len(s.betas) - 2 }

// Beta returns coefficient i
func (s Schedule) Beta(i int) float64 { return s.betas[i] }

// Betas returns a copy of the coefficients
func (s Schedule) Betas() []float64 {
	cp := make([]float64, len(s.betas))
	copy(cp, s.betas)
	return cp
}
