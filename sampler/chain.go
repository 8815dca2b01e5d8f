package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/grais/buffer"
	"github.com/CraigKelly/grais/density"
)

// Result is the output of one annealing pass
type Result struct {
	X    *mat.Dense
	LogW []float64
	Diag Diagnostics
}

// Chain drives repeated annealing passes against a fixed proposal and
// target, threading the sampler State from one pass to the next the same
// way an outer training loop would. It keeps a window of log normalizer
// estimates for convergence checks.
type Chain struct {
	Sampler   Sampler
	Proposal  density.Proposal
	Target    density.Density
	BatchSize int
	State     State
	History   *buffer.CircularFloat
	TotalRuns int64
	Last      Result
}

// NewChain returns a chain ready to go. It performs burnIn passes first so
// tuned step sizes can settle; those passes are not recorded in History.
func NewChain(s Sampler, q density.Proposal, p density.Density, batchSize int, seed int64, window int, burnIn int) (*Chain, error) {
	if s == nil || q == nil || p == nil {
		return nil, errors.New("Chain needs a sampler, a proposal and a target")
	}
	if batchSize < 1 {
		return nil, errors.Errorf("Invalid batch size %d", batchSize)
	}

	_, st, err := s.Init(seed, 1, q)
	if err != nil {
		return nil, errors.Wrap(err, "Could not initialize sampler state")
	}

	ch := &Chain{
		Sampler:   s,
		Proposal:  q,
		Target:    p,
		BatchSize: batchSize,
		State:     st,
		History:   buffer.NewCircularFloat(window),
	}

	for i := 0; i < burnIn; i++ {
		if _, err := ch.pass(); err != nil {
			return nil, errors.Wrap(err, "Failure during chain burn in")
		}
	}

	return ch, nil
}

// pass draws fresh particles and runs one annealing pass
func (c *Chain) pass() (Result, error) {
	carry, sub := c.State.Key.Next()
	st := c.State.Clone()
	st.Key = carry

	x0 := c.Proposal.Sample(sub.Generator(), c.BatchSize)
	x, logW, next, diag, err := c.Sampler.Step(x0, st, c.Proposal, c.Target)
	if err != nil {
		return Result{}, err
	}

	c.State = next
	return Result{X: x, LogW: logW, Diag: diag}, nil
}

// Advance runs one recorded annealing pass
func (c *Chain) Advance() (Result, error) {
	res, err := c.pass()
	if err != nil {
		return Result{}, errors.Wrap(err, "Error taking annealing pass")
	}

	c.History.Add(res.Diag["log_z"])
	c.TotalRuns++
	c.Last = res
	return res, nil
}

// Drift compares the two halves of the log normalizer history: the absolute
// difference of their means over the pooled standard error. It is NaN until
// the window is full or if either half contains a non-finite estimate.
func (c *Chain) Drift() float64 {
	h, ok := c.History.Summarize()
	if !ok {
		return math.NaN()
	}

	se := math.Sqrt((h.OlderVar + h.NewerVar) / float64(h.N))
	if se == 0 {
		if h.OlderMean == h.NewerMean {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(h.OlderMean-h.NewerMean) / se
}

// Converged is true once the history window is full and the drift between
// its halves is below tol.
func (c *Chain) Converged(tol float64) bool {
	d := c.Drift()
	return !math.IsNaN(d) && d < tol
}
