package sampler

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/grais/anneal"
	"github.com/CraigKelly/grais/density"
	"github.com/CraigKelly/grais/rand"
)

// Config holds everything about an annealed importance sampler except the
// kernel itself.
type Config struct {
	NIntermediate  int     // number of intermediate distributions
	Spacing        string  // schedule spacing: linear or geometric
	Alpha          float64 // divergence exponent applied to the proposal term
	TargetAccept   float64 // target acceptance probability for step tuning
	TuneStepSize   bool    // adapt step sizes after every call
	ReplaceInvalid bool    // swap non-finite initial particles for valid ones
	Workers        int     // goroutines per kernel move, <= 0 for GOMAXPROCS
	Adapter        Adapter
}

// DefaultConfig returns a usable configuration
func DefaultConfig() Config {
	return Config{
		NIntermediate:  4,
		Spacing:        anneal.LINEAR,
		Alpha:          1.0,
		TargetAccept:   0.65,
		TuneStepSize:   false,
		ReplaceInvalid: true,
		Workers:        0,
		Adapter:        DefaultAdapter(),
	}
}

// Check returns an ErrConfiguration error for any invalid setting
func (c Config) Check() error {
	if c.NIntermediate < 0 {
		return configErrorf("Invalid number of intermediate distributions %d", c.NIntermediate)
	}
	if _, err := anneal.SpacingByName(c.Spacing); err != nil {
		return errors.Wrap(ErrConfiguration, err.Error())
	}
	if _, err := anneal.NewAlphaPath(c.Alpha); err != nil {
		return errors.Wrap(ErrConfiguration, err.Error())
	}
	if !(c.TargetAccept > 0 && c.TargetAccept < 1) {
		return configErrorf("Target acceptance %v must be in (0, 1)", c.TargetAccept)
	}
	return c.Adapter.Check()
}

// State is threaded through successive calls to Step: one kernel state per
// intermediate distribution plus the random stream for the next call. It is
// a value; Step never modifies the State it is given.
type State struct {
	Kernels []KernelState `yaml:"kernels" json:"kernels"`
	Key     rand.Key      `yaml:"key" json:"key"`
}

// Clone returns a deep copy
func (s State) Clone() State {
	cp := State{
		Kernels: make([]KernelState, len(s.Kernels)),
		Key:     s.Key,
	}
	for i, k := range s.Kernels {
		cp.Kernels[i] = k.Clone()
	}
	return cp
}

// AIS is an annealed importance sampler whose kernel needs capability D
// from the proposal and target densities.
type AIS[D density.Density] struct {
	kernel   Kernel[D]
	schedule anneal.Schedule
	path     anneal.Path
	cfg      Config
}

// NewAIS validates the configuration and returns a sampler. Nothing is
// sampled here.
func NewAIS[D density.Density](kernel Kernel[D], cfg Config) (*AIS[D], error) {
	if kernel == nil {
		return nil, configErrorf("No transition kernel supplied")
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if err := checkInitStep(kernel.InitState().StepSize); err != nil {
		return nil, err
	}

	spacing, _ := anneal.SpacingByName(cfg.Spacing)
	sched, err := anneal.NewSchedule(cfg.NIntermediate, spacing)
	if err != nil {
		return nil, errors.Wrap(ErrConfiguration, err.Error())
	}
	path, _ := anneal.NewAlphaPath(cfg.Alpha)

	return &AIS[D]{
		kernel:   kernel,
		schedule: sched,
		path:     path,
		cfg:      cfg,
	}, nil
}

// Schedule returns the annealing schedule
func (a *AIS[D]) Schedule() anneal.Schedule { return a.schedule }

// Config returns the sampler configuration
func (a *AIS[D]) Config() Config { return a.cfg }

// Kernel returns the name of the transition kernel
func (a *AIS[D]) Kernel() string { return a.kernel.Name() }

// InitState returns the starting state for a seed
func (a *AIS[D]) InitState(seed int64) State {
	n := a.schedule.Intermediate()
	st := State{
		Kernels: make([]KernelState, n),
		Key:     rand.NewKey(seed),
	}
	for i := range st.Kernels {
		st.Kernels[i] = a.kernel.InitState()
	}
	return st
}

// Init returns batchSize particles drawn from q together with the starting
// state. The particles and the state's random stream both derive from seed.
func (a *AIS[D]) Init(seed int64, batchSize int, q density.Proposal) (*mat.Dense, State, error) {
	if batchSize < 1 {
		return nil, State{}, errors.Errorf("Batch size must be positive, got %d", batchSize)
	}
	if q == nil {
		return nil, State{}, errors.New("No proposal supplied")
	}

	st := a.InitState(seed)
	carry, sub := st.Key.Next()
	st.Key = carry

	return q.Sample(sub.Generator(), batchSize), st, nil
}

func (a *AIS[D]) checkStep(x *mat.Dense, st State, logQ, logP D) (int, int, error) {
	if x == nil {
		return 0, 0, errors.New("No particles supplied")
	}
	if any(logQ) == nil || any(logP) == nil {
		return 0, 0, errors.New("Proposal and target densities are required")
	}
	n, dim := x.Dims()
	if n < 1 || dim < 1 {
		return 0, 0, errors.Errorf("Empty particle batch %dx%d", n, dim)
	}
	if logQ.Dim() != dim || logP.Dim() != dim {
		return 0, 0, errors.Errorf("Particle dim %d, proposal dim %d, target dim %d", dim, logQ.Dim(), logP.Dim())
	}
	if len(st.Kernels) != a.schedule.Intermediate() {
		return 0, 0, errors.Errorf("State has %d kernel states for %d intermediate distributions",
			len(st.Kernels), a.schedule.Intermediate())
	}
	for i, k := range st.Kernels {
		if err := k.Check(dim); err != nil {
			return 0, 0, errors.Wrapf(err, "Kernel state %d", i)
		}
	}
	return n, dim, nil
}

// evaluate builds the starting batch at x
func evaluate[D density.Density](x *mat.Dense, logQ, logP D, par Parallel) (Batch, error) {
	n, _ := x.Dims()
	b := Batch{
		X:    mat.DenseCopyOf(x),
		LogQ: make([]float64, n),
		LogP: make([]float64, n),
	}
	err := par.Each(n, func(i int) error {
		row := b.X.RawRowView(i)
		b.LogQ[i] = logQ.LogProb(row)
		b.LogP[i] = logP.LogProb(row)
		return nil
	})
	return b, err
}

// replaceInvalid swaps every invalid particle for a uniformly chosen valid
// one. Nothing changes when no particle is valid.
func replaceInvalid(b Batch, key rand.Key) int {
	n := b.Len()
	valid := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if b.valid(i) {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 || len(valid) == n {
		return 0
	}

	gen := key.Generator()
	replaced := 0
	for i := 0; i < n; i++ {
		if b.valid(i) {
			continue
		}
		j := valid[gen.Intn(len(valid))]
		b.X.SetRow(i, b.X.RawRowView(j))
		b.LogQ[i], b.LogP[i] = b.LogQ[j], b.LogP[j]
		replaced++
	}
	return replaced
}

// DistKey names a per-distribution diagnostic, e.g. dist2_accept
func DistKey(k int, name string) string {
	return fmt.Sprintf("dist%d_%s", k, name)
}

// keepValid restores particles the kernel moved somewhere non-finite
func keepValid(prev, next Batch) {
	for i := 0; i < next.Len(); i++ {
		if !next.valid(i) && prev.valid(i) {
			next.X.SetRow(i, prev.X.RawRowView(i))
			next.LogQ[i], next.LogP[i] = prev.LogQ[i], prev.LogP[i]
		}
	}
}

// Step runs one full annealing pass from the particles x (drawn from the
// proposal) to the target. It returns the final particles, their log
// importance weights, the state for the next call and per-call diagnostics.
//
// For schedule index i = 0..n the log-weight of every particle is increased
// by f_{i+1}(x) - f_i(x) at its current position, and then (for all but the
// last index) the kernel moves the particles under f_{i+1}.
func (a *AIS[D]) Step(x *mat.Dense, st State, logQ, logP D) (*mat.Dense, []float64, State, Diagnostics, error) {
	n, _, err := a.checkStep(x, st, logQ, logP)
	if err != nil {
		return nil, nil, State{}, nil, err
	}

	par := Parallel{Workers: a.cfg.Workers}
	next := st.Clone()
	carry, sub := st.Key.Next()
	next.Key = carry

	nInter := a.schedule.Intermediate()
	keys := sub.Split(nInter + 1)

	batch, err := evaluate(x, logQ, logP, par)
	if err != nil {
		return nil, nil, State{}, nil, errors.Wrap(err, "Failed evaluating initial particles")
	}

	diag := make(Diagnostics)
	replaced := 0
	if a.cfg.ReplaceInvalid {
		replaced = replaceInvalid(batch, keys[0])
	}
	diag["n_replaced"] = float64(replaced)

	// Plain importance weights log p - log q, independent of alpha
	logWqp := make([]float64, n)
	for i := range logWqp {
		logWqp[i] = importanceLogWeight(batch.LogQ[i], batch.LogP[i])
	}
	diag["log_ess_q_p"] = LogEffectiveSampleSize(logWqp)
	diag["ess_q_p"] = math.Exp(diag["log_ess_q_p"])

	logW := make([]float64, n)
	for i := 0; i <= nInter; i++ {
		from, to := a.schedule.Beta(i), a.schedule.Beta(i+1)
		for j := range logW {
			logW[j] += a.path.Increment(batch.LogQ[j], batch.LogP[j], from, to)
		}

		if i == nInter {
			break
		}

		target := Target[D]{Q: logQ, P: logP, Beta: to, Path: a.path}
		ks := st.Kernels[i]
		moved, accept, err := a.kernel.Move(batch, target, ks, keys[i+1], par)
		if err != nil {
			return nil, nil, State{}, nil, errors.Wrapf(err, "Transition failed at intermediate distribution %d", i+1)
		}
		keepValid(batch, moved)
		batch = moved

		next.Kernels[i] = a.cfg.Adapter.AdaptState(ks, accept, a.cfg.TargetAccept, a.cfg.TuneStepSize)

		diag[DistKey(i+1, "accept")] = accept
		diag[DistKey(i+1, "step_size")] = ks.Mean()
	}

	diag["log_ess_ais"] = LogEffectiveSampleSize(logW)
	diag["ess_ais"] = math.Exp(diag["log_ess_ais"])
	diag["log_z"] = LogNormalizer(logW)
	finite, maxAbs := finiteStats(batch.X, logW)
	diag["n_finite_ais_samples"] = float64(finite)
	diag["ais_max_abs_x"] = maxAbs

	return batch.X, logW, next, diag, nil
}
