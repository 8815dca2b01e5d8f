package sampler

import (
	"math"
)

// Adapter tunes a kernel step size toward a target acceptance rate with the
// multiplicative rule
//
//	step' = clip(step * exp(Rate * (observed - target)), Min, Max)
//
// so a kernel accepting too often takes bigger steps next time.
type Adapter struct {
	Rate float64
	Min  float64
	Max  float64
}

// DefaultAdapter returns the adapter used unless configured otherwise
func DefaultAdapter() Adapter {
	return Adapter{
		Rate: 0.5,
		Min:  1e-6,
		Max:  1e3,
	}
}

// Check returns a configuration error if the adapter could produce a
// non-positive or non-finite step
func (a Adapter) Check() error {
	if !(a.Rate > 0) || math.IsInf(a.Rate, 0) {
		return configErrorf("Adapter rate %v must be positive and finite", a.Rate)
	}
	if !(a.Min > 0) || math.IsInf(a.Max, 0) || !(a.Max >= a.Min) {
		return configErrorf("Adapter bounds [%v, %v] must satisfy 0 < min <= max < Inf", a.Min, a.Max)
	}
	return nil
}

func (a Adapter) clip(s float64) float64 {
	switch {
	case math.IsNaN(s) || s < a.Min:
		return a.Min
	case s > a.Max:
		return a.Max
	}
	return s
}

// Adapt returns the next step size. With tuning disabled it is the identity.
func (a Adapter) Adapt(stepSize, observed, target float64, enabled bool) float64 {
	if !enabled {
		return stepSize
	}
	if math.IsNaN(observed) {
		// no information this round
		return a.clip(stepSize)
	}
	return a.clip(stepSize * math.Exp(a.Rate*(observed-target)))
}

// AdaptState applies Adapt to every entry of a kernel state and returns a
// new state. The input is never modified.
func (a Adapter) AdaptState(st KernelState, observed, target float64, enabled bool) KernelState {
	next := st.Clone()
	for i, s := range next.StepSize {
		next.StepSize[i] = a.Adapt(s, observed, target, enabled)
	}
	return next
}
