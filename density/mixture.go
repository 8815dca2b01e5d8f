package density

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/grais/rand"
)

// Mixture is a weighted mixture of diagonal Gaussians. It is the usual
// multi-modal target we anneal toward.
type Mixture struct {
	Components []*Gaussian
	LogWeights []float64 // normalized: logsumexp(LogWeights) == 0
}

// NewMixture builds a mixture. A nil weights slice means equal weights;
// otherwise the weights must be non-negative with a positive sum (they are
// normalized here).
func NewMixture(comps []*Gaussian, weights []float64) (*Mixture, error) {
	if len(comps) < 1 {
		return nil, errors.Errorf("Mixture needs at least one component")
	}

	dim := comps[0].Dim()
	for i, c := range comps {
		if c.Dim() != dim {
			return nil, errors.Errorf("Mixture component %d has dim %d, expected %d", i, c.Dim(), dim)
		}
	}

	if weights == nil {
		weights = make([]float64, len(comps))
		for i := range weights {
			weights[i] = 1.0
		}
	}
	if len(weights) != len(comps) {
		return nil, errors.Errorf("Mixture has %d weights for %d components", len(weights), len(comps))
	}

	var total float64
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, errors.Errorf("Mixture weight[%d]=%v is invalid", i, w)
		}
		total += w
	}
	if total <= 0 {
		return nil, errors.Errorf("Mixture weights sum to %v", total)
	}

	m := &Mixture{
		Components: comps,
		LogWeights: make([]float64, len(comps)),
	}
	for i, w := range weights {
		m.LogWeights[i] = math.Log(w / total)
	}

	return m, nil
}

// NewGMM creates the standard test problem: nMixes unit-scale components in
// dim dimensions, means drawn uniformly from [-locScaling, locScaling].
func NewGMM(dim, nMixes int, locScaling float64, key rand.Key) (*Mixture, error) {
	if dim < 1 || nMixes < 1 {
		return nil, errors.Errorf("GMM needs dim >= 1 and n_mixes >= 1 (got %d, %d)", dim, nMixes)
	}
	if !(locScaling > 0) {
		return nil, errors.Errorf("GMM loc_scaling must be positive (got %v)", locScaling)
	}

	gen := key.Generator()
	comps := make([]*Gaussian, nMixes)
	scale := make([]float64, dim)
	for i := range scale {
		scale[i] = 1.0
	}

	for k := range comps {
		mean := make([]float64, dim)
		for j := range mean {
			mean[j] = (2*gen.Float64() - 1) * locScaling
		}
		c, err := NewGaussian(mean, scale)
		if err != nil {
			return nil, errors.Wrapf(err, "GMM component %d", k)
		}
		comps[k] = c
	}

	return NewMixture(comps, nil)
}

// Dim implements Density
func (m *Mixture) Dim() int { return m.Components[0].Dim() }

func (m *Mixture) componentLogProbs(x []float64) []float64 {
	lp := make([]float64, len(m.Components))
	for k, c := range m.Components {
		lp[k] = m.LogWeights[k] + c.LogProb(x)
	}
	return lp
}

// LogProb implements Density
func (m *Mixture) LogProb(x []float64) float64 {
	return floats.LogSumExp(m.componentLogProbs(x))
}

// GradLogProb is the responsibility-weighted sum of component gradients
func (m *Mixture) GradLogProb(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	for i := range dst {
		dst[i] = 0
	}

	lp := m.componentLogProbs(x)
	norm := floats.LogSumExp(lp)
	if math.IsInf(norm, -1) || math.IsNaN(norm) {
		return dst
	}

	g := make([]float64, len(x))
	for k, c := range m.Components {
		r := math.Exp(lp[k] - norm)
		if r == 0 {
			continue
		}
		c.GradLogProb(g, x)
		floats.AddScaled(dst, r, g)
	}
	return dst
}

// Sample draws n particles by first choosing a component
func (m *Mixture) Sample(gen *rand.Generator, n int) *mat.Dense {
	x := mat.NewDense(n, m.Dim(), nil)
	for i := 0; i < n; i++ {
		u := gen.Float64()
		k := len(m.Components) - 1
		var cum float64
		for j, lw := range m.LogWeights {
			cum += math.Exp(lw)
			if u < cum {
				k = j
				break
			}
		}

		c := m.Components[k]
		row := gen.Normal(x.RawRowView(i))
		for j := range row {
			row[j] = c.Mean[j] + c.Scale[j]*row[j]
		}
	}
	return x
}
