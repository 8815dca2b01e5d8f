package anneal

import (
	"math"

	"github.com/pkg/errors"
)

// A Path combines proposal and target log densities into the tempered log
// density at beta. Implementations must return -Inf (never NaN) when the
// combination is undefined.
type Path interface {
	LogProb(logQ, logP, beta float64) float64
	// Grad writes the tempered gradient into dst
	Grad(dst, gradQ, gradP []float64, beta float64) []float64
	// Increment is the log-weight contribution f_to(x) - f_from(x). It is
	// -Inf whenever either side is -Inf or NaN.
	Increment(logQ, logP, from, to float64) float64
}

// AlphaPath is the alpha-divergence annealing path
//
//	f_beta(x) = (1-beta)*alpha*log q(x) + beta*log p(x)
//
// Only the proposal term is scaled by alpha. Alpha = 1 is the standard
// geometric path.
type AlphaPath struct {
	Alpha float64
}

// NewAlphaPath checks alpha is finite
func NewAlphaPath(alpha float64) (AlphaPath, error) {
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return AlphaPath{}, errors.Errorf("Alpha must be finite, got %v", alpha)
	}
	return AlphaPath{Alpha: alpha}, nil
}

// term is c*v where a zero coefficient always contributes exactly zero
// (so 0 * -Inf is 0) and NaN log densities count as -Inf.
func term(c, v float64) float64 {
	if c == 0 {
		return 0
	}
	if math.IsNaN(v) {
		v = math.Inf(-1)
	}
	return c * v
}

// LogProb implements Path
func (a AlphaPath) LogProb(logQ, logP, beta float64) float64 {
	f := term((1-beta)*a.Alpha, logQ) + term(beta, logP)
	if math.IsNaN(f) {
		// -Inf + +Inf: only reachable with an improper (+Inf) log density
		return math.Inf(-1)
	}
	return f
}

// Grad implements Path
func (a AlphaPath) Grad(dst, gradQ, gradP []float64, beta float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(gradP))
	}
	cq := (1 - beta) * a.Alpha
	for i := range dst {
		var g float64
		if cq != 0 {
			g += cq * gradQ[i]
		}
		if beta != 0 {
			g += beta * gradP[i]
		}
		dst[i] = g
	}
	return dst
}

// Increment implements Path in closed form: (to-from)*(log p - alpha*log q),
// exactly zero when the two terms agree.
func (a AlphaPath) Increment(logQ, logP, from, to float64) float64 {
	if undefined(a, logQ, logP, from, to) {
		return math.Inf(-1)
	}
	d := (to - from) * (term(1, logP) - term(a.Alpha, logQ))
	if math.IsNaN(d) {
		return math.Inf(-1)
	}
	return d
}

// undefined is true when either end of the increment has a -Inf tempered
// log density.
func undefined(p Path, logQ, logP, from, to float64) bool {
	hi := p.LogProb(logQ, logP, to)
	lo := p.LogProb(logQ, logP, from)
	return math.IsInf(hi, -1) || math.IsInf(lo, -1) || math.IsNaN(hi) || math.IsNaN(lo)
}
