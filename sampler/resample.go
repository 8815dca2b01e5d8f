package sampler

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/grais/rand"
)

// NormalizedWeights returns softmax(logW). NaN log-weights count as -Inf. If
// every weight is -Inf the result is uniform; if any weight is +Inf the mass
// is shared equally among the +Inf entries.
func NormalizedWeights(logW []float64) []float64 {
	n := len(logW)
	w := make([]float64, n)
	if n == 0 {
		return w
	}

	clean := make([]float64, n)
	posInf := 0
	for i, v := range logW {
		if math.IsNaN(v) {
			v = math.Inf(-1)
		}
		if math.IsInf(v, 1) {
			posInf++
		}
		clean[i] = v
	}

	if posInf > 0 {
		for i, v := range clean {
			if math.IsInf(v, 1) {
				w[i] = 1.0 / float64(posInf)
			}
		}
		return w
	}

	norm := floats.LogSumExp(clean)
	if math.IsInf(norm, -1) {
		for i := range w {
			w[i] = 1.0 / float64(n)
		}
		return w
	}

	for i, v := range clean {
		w[i] = math.Exp(v - norm)
	}
	return w
}

func checkResample(x *mat.Dense, logW []float64) (int, error) {
	if x == nil {
		return 0, errors.New("No particles to resample")
	}
	r, _ := x.Dims()
	if r < 1 {
		return 0, errors.New("No particles to resample")
	}
	if r != len(logW) {
		return 0, errors.Errorf("Particle count %d != log weight count %d", r, len(logW))
	}
	return r, nil
}

func gather(x *mat.Dense, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, j := range idx {
		out.SetRow(i, x.RawRowView(j))
	}
	return out
}

// cumulative returns the running sum of w. Every entry from the last
// positive weight onward is exactly 1, so trailing zero weights are never
// selected by a draw in [0, 1).
func cumulative(w []float64) []float64 {
	cum := make([]float64, len(w))
	floats.CumSum(cum, w)
	last := len(w) - 1
	for last > 0 && !(w[last] > 0) {
		last--
	}
	for j := last; j < len(cum); j++ {
		cum[j] = 1.0
	}
	return cum
}

// Resample draws len(logW) particles with replacement, each independently
// with probability softmax(logW) (multinomial resampling). The selected
// indices are returned with the new particles.
func Resample(x *mat.Dense, logW []float64, gen *rand.Generator) (*mat.Dense, []int, error) {
	n, err := checkResample(x, logW)
	if err != nil {
		return nil, nil, err
	}

	cum := cumulative(NormalizedWeights(logW))
	idx := make([]int, n)
	for i := range idx {
		u := gen.Float64()
		j := sort.Search(n, func(k int) bool { return cum[k] > u })
		if j >= n {
			j = n - 1
		}
		idx[i] = j
	}

	return gather(x, idx), idx, nil
}

// ResampleSystematic uses a single uniform offset and n evenly spaced
// pointers. It is unbiased with lower variance than Resample, but the draws
// are not independent.
func ResampleSystematic(x *mat.Dense, logW []float64, gen *rand.Generator) (*mat.Dense, []int, error) {
	n, err := checkResample(x, logW)
	if err != nil {
		return nil, nil, err
	}

	cum := cumulative(NormalizedWeights(logW))
	idx := make([]int, n)
	u0 := gen.Float64() / float64(n)
	j := 0
	for i := range idx {
		u := u0 + float64(i)/float64(n)
		for j < n-1 && cum[j] <= u {
			j++
		}
		idx[i] = j
	}

	return gather(x, idx), idx, nil
}
