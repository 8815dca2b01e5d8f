package density

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/grais/rand"
)

var logSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// Gaussian is a normal distribution with diagonal covariance. It is a
// Proposal and Differentiable.
type Gaussian struct {
	Mean  []float64
	Scale []float64 // standard deviation per dimension

	logNorm float64
}

// NewGaussian validates and returns a diagonal Gaussian. Scale must be
// strictly positive and finite in every dimension.
func NewGaussian(mean, scale []float64) (*Gaussian, error) {
	if len(mean) < 1 {
		return nil, errors.Errorf("Gaussian needs at least one dimension")
	}
	if len(mean) != len(scale) {
		return nil, errors.Errorf("Gaussian mean dim %d != scale dim %d", len(mean), len(scale))
	}

	g := &Gaussian{
		Mean:  make([]float64, len(mean)),
		Scale: make([]float64, len(scale)),
	}
	copy(g.Mean, mean)
	copy(g.Scale, scale)

	for i, s := range scale {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, errors.Errorf("Gaussian scale[%d]=%v must be positive and finite", i, s)
		}
		if math.IsNaN(mean[i]) || math.IsInf(mean[i], 0) {
			return nil, errors.Errorf("Gaussian mean[%d]=%v must be finite", i, mean[i])
		}
		g.logNorm -= math.Log(s) + logSqrt2Pi
	}

	return g, nil
}

// StandardGaussian is N(0, I) in dim dimensions
func StandardGaussian(dim int) *Gaussian {
	mean := make([]float64, dim)
	scale := make([]float64, dim)
	for i := range scale {
		scale[i] = 1.0
	}
	g, err := NewGaussian(mean, scale)
	if err != nil {
		panic(err)
	}
	return g
}

// Dim implements Density
func (g *Gaussian) Dim() int { return len(g.Mean) }

// LogProb is the normalized log density at x
func (g *Gaussian) LogProb(x []float64) float64 {
	if len(x) != len(g.Mean) {
		panic("gaussian: dimension mismatch")
	}
	var sq float64
	for i, v := range x {
		z := (v - g.Mean[i]) / g.Scale[i]
		sq += z * z
	}
	return g.logNorm - 0.5*sq
}

// GradLogProb implements Differentiable
func (g *Gaussian) GradLogProb(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	for i, v := range x {
		s := g.Scale[i]
		dst[i] = -(v - g.Mean[i]) / (s * s)
	}
	return dst
}

// Sample draws n particles
func (g *Gaussian) Sample(gen *rand.Generator, n int) *mat.Dense {
	d := len(g.Mean)
	x := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := gen.Normal(x.RawRowView(i))
		for j := range row {
			row[j] = g.Mean[j] + g.Scale[j]*row[j]
		}
	}
	return x
}
