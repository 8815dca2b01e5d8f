package cmd

import (
	"math"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/grais/rand"
	"github.com/CraigKelly/grais/sampler"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate log Z from independent replicate runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := EstimateReplicates(&sp)
		return err
	},
}

// replicate is the outcome of one independent annealing pass
type replicate struct {
	Seed int64
	LogZ float64
	ESS  float64
}

// EstimateReplicates runs the configured number of independent annealing
// passes in parallel, each from its own seed, and reports the spread of the
// log normalizer estimates.
func EstimateReplicates(sp *startupParams) ([]replicate, error) {
	prob, err := sp.loadProblem()
	if err != nil {
		return nil, err
	}

	s, q, target, err := prob.Sampler()
	if err != nil {
		return nil, errors.Wrap(err, "Could not build sampler")
	}

	n := prob.Run.Replicates
	sp.out.Printf("Problem %s: %d replicates of %d particles, kernel=%s, %d intermediate\n",
		prob.Name, n, prob.Run.BatchSize, s.Kernel(), s.Schedule().Intermediate())

	// Replicate seeds derive from the CLI seed so the whole run is repeatable
	gen := rand.NewKey(sp.randomSeed).Generator()
	results := make([]replicate, n)
	for i := range results {
		results[i].Seed = gen.Int63()
	}

	startTime := time.Now()
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range results {
		i := i // per-iteration copy; go.mod targets go 1.21 loop semantics
		g.Go(func() error {
			x0, st, err := s.Init(results[i].Seed, prob.Run.BatchSize, q)
			if err != nil {
				return err
			}
			_, _, _, diag, err := s.Step(x0, st, q, target)
			if err != nil {
				return errors.Wrapf(err, "Replicate %d failed", i)
			}
			results[i].LogZ = diag["log_z"]
			results[i].ESS = diag["ess_ais"]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logZ := make([]float64, 0, n)
	for i, r := range results {
		sp.trace.Printf("%d\t%d\t%.6f\t%.6f\n", i, r.Seed, r.LogZ, r.ESS)
		if sp.verbose {
			sp.out.Printf("Replicate %3d | seed:%20d log_z:%10.5f ESS:%6.3f\n", i, r.Seed, r.LogZ, r.ESS)
		}
		if !math.IsInf(r.LogZ, 0) && !math.IsNaN(r.LogZ) {
			logZ = append(logZ, r.LogZ)
		}
	}

	sp.out.Printf("Finished %d replicates in %.3fs\n", n, time.Since(startTime).Seconds())
	if len(logZ) == 0 {
		sp.out.Printf("No replicate produced a finite estimate\n")
		return results, nil
	}

	mean, std := stat.MeanStdDev(logZ, nil)
	if len(logZ) < 2 {
		std = math.NaN()
	}
	sp.out.Printf("log Z: %.6f +/- %.6f (std err %.6f, %d finite)\n",
		mean, std, std/math.Sqrt(float64(len(logZ))), len(logZ))

	// Equal batch sizes: the mean of the Z estimates is the pooled estimate
	sp.out.Printf("log Z pooled: %.6f\n", sampler.LogNormalizer(logZ))
	return results, nil
}
