// Package density holds the density collaborators consumed by the annealed
// importance sampler: the interfaces a proposal and a target must satisfy,
// plus a few concrete densities used for testing and by the command line.
package density

import (
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/grais/rand"
)

// A Density is an unnormalized log density over R^d. Implementations must
// be safe for concurrent calls to LogProb: particles are evaluated in
// parallel.
type Density interface {
	Dim() int
	LogProb(x []float64) float64
}

// Differentiable is a Density that also provides the gradient of LogProb.
// GradLogProb writes the gradient at x into dst (allocating if dst is nil)
// and returns it.
type Differentiable interface {
	Density
	GradLogProb(dst, x []float64) []float64
}

// Proposal is a tractable Density we can also draw from. Sample returns an
// n x Dim() matrix, one particle per row.
type Proposal interface {
	Density
	Sample(gen *rand.Generator, n int) *mat.Dense
}

// Func adapts a plain function to the Density interface. This is the usual
// way a caller passes the current proposal's log density into a sampler step.
type Func struct {
	D int
	F func(x []float64) float64
}

// Dim implements Density
func (f Func) Dim() int { return f.D }

// LogProb implements Density
func (f Func) LogProb(x []float64) float64 { return f.F(x) }

// GradFunc adapts a function and its gradient to Differentiable.
type GradFunc struct {
	D    int
	F    func(x []float64) float64
	Grad func(dst, x []float64) []float64
}

// Dim implements Density
func (f GradFunc) Dim() int { return f.D }

// LogProb implements Density
func (f GradFunc) LogProb(x []float64) float64 { return f.F(x) }

// GradLogProb implements Differentiable
func (f GradFunc) GradLogProb(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	return f.Grad(dst, x)
}

// LogProbs evaluates d at every row of x
func LogProbs(d Density, x *mat.Dense) []float64 {
	r, _ := x.Dims()
	lp := make([]float64, r)
	for i := range lp {
		lp[i] = d.LogProb(x.RawRowView(i))
	}
	return lp
}
