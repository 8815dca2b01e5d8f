package sampler

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Diagnostics maps a metric name to its value for one sampler step
type Diagnostics map[string]float64

// Keys returns the metric names in sorted order
func (d Diagnostics) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sanitize(logW []float64) []float64 {
	clean := make([]float64, len(logW))
	for i, v := range logW {
		if math.IsNaN(v) {
			v = math.Inf(-1)
		}
		clean[i] = v
	}
	return clean
}

// importanceLogWeight is log p - log q, -Inf when either side is -Inf or NaN
func importanceLogWeight(logQ, logP float64) float64 {
	if math.IsInf(logQ, -1) || math.IsInf(logP, -1) {
		return math.Inf(-1)
	}
	d := logP - logQ
	if math.IsNaN(d) {
		return math.Inf(-1)
	}
	return d
}

// LogEffectiveSampleSize is log(ESS / N) for the weighted particle set, so
// it lies in [-Inf, 0]. A set whose weights are all zero (every log-weight
// -Inf) has ESS 0.
func LogEffectiveSampleSize(logW []float64) float64 {
	n := len(logW)
	if n == 0 {
		return math.Inf(-1)
	}

	clean := sanitize(logW)
	top := floats.Max(clean)
	switch {
	case math.IsInf(top, -1):
		return math.Inf(-1)
	case math.IsInf(top, 1):
		var sq float64
		for _, w := range NormalizedWeights(clean) {
			sq += w * w
		}
		return -math.Log(sq) - math.Log(float64(n))
	}

	double := make([]float64, n)
	floats.ScaleTo(double, 2, clean)
	return 2*floats.LogSumExp(clean) - floats.LogSumExp(double) - math.Log(float64(n))
}

// EffectiveSampleSize is ESS / N, in [0, 1]
func EffectiveSampleSize(logW []float64) float64 {
	return math.Exp(LogEffectiveSampleSize(logW))
}

// LogNormalizer is the importance sampling estimate of the log normalizing
// constant of the target: logsumexp(logW) - log(N).
func LogNormalizer(logW []float64) float64 {
	if len(logW) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(sanitize(logW)) - math.Log(float64(len(logW)))
}

// WeightedMean is the self-normalized importance sampling estimate of the
// target mean, one entry per dimension.
func WeightedMean(x *mat.Dense, logW []float64) []float64 {
	_, c := x.Dims()
	w := NormalizedWeights(logW)
	mean := make([]float64, c)
	col := make([]float64, len(w))
	for j := range mean {
		mat.Col(col, j, x)
		mean[j] = stat.Mean(col, w)
	}
	return mean
}

// finiteStats returns the number of rows with finite position and log
// weight, plus the largest absolute coordinate.
func finiteStats(x *mat.Dense, logW []float64) (count int, maxAbs float64) {
	r, _ := x.Dims()
	for i := 0; i < r; i++ {
		ok := isFinite(logW[i])
		for _, v := range x.RawRowView(i) {
			if !isFinite(v) {
				ok = false
				continue
			}
			if a := math.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
		if ok {
			count++
		}
	}
	return count, maxAbs
}
