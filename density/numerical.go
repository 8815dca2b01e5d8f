package density

import (
	"gonum.org/v1/gonum/diff/fd"
)

// Numerical gives any Density a central finite-difference gradient. It is
// never applied implicitly: a caller who wants HMC on a density without an
// analytic gradient must wrap it on purpose.
type Numerical struct {
	Density
	Step float64 // zero uses the fd package default
}

// NewNumerical wraps d
func NewNumerical(d Density) *Numerical {
	return &Numerical{Density: d}
}

// GradLogProb implements Differentiable
func (n *Numerical) GradLogProb(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	return fd.Gradient(dst, n.Density.LogProb, x, &fd.Settings{
		Formula: fd.Central,
		Step:    n.Step,
	})
}
