package cmd

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/grais/sampler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run annealing passes until the log normalizer estimate settles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunChain(&sp)
	},
}

// RunChain repeatedly anneals fresh batches from the proposal to the target,
// threading the sampler state between passes, until the log normalizer
// window converges or the pass limit is hit. The final batch is resampled
// and its mean reported.
func RunChain(sp *startupParams) error {
	prob, err := sp.loadProblem()
	if err != nil {
		return err
	}

	s, q, target, err := prob.Sampler()
	if err != nil {
		return errors.Wrap(err, "Could not build sampler")
	}
	sched := s.Schedule()
	sp.out.Printf("Problem %s: dim=%d kernel=%s intermediate=%d spacing=%s\n",
		prob.Name, prob.Dim, s.Kernel(), sched.Intermediate(), prob.AIS.Spacing)
	if sp.verbose {
		sp.out.Printf("Betas: %v\n", sched.Betas())
	}

	var mon *monitor
	if len(sp.monitorAddr) > 0 {
		mon = newMonitor(sp.monitorAddr, sp.runID)
		if err := mon.Start(); err != nil {
			return err
		}
		defer mon.Stop()

		mon.BatchSize.Set(float64(prob.Run.BatchSize))
		mon.Intermediate.Set(float64(sched.Intermediate()))
		mon.Window.Set(float64(prob.Run.Window))
		mon.MaxPasses.Set(float64(prob.Run.MaxPasses))
	}

	startTime := time.Now()
	ch, err := sampler.NewChain(s, q, target, prob.Run.BatchSize, sp.randomSeed, prob.Run.Window, prob.Run.BurnIn)
	if err != nil {
		return err
	}
	if prob.Run.BurnIn > 0 {
		sp.out.Printf("Burn in: %d passes in %.3fs\n", prob.Run.BurnIn, time.Since(startTime).Seconds())
	}

	sp.trace.Printf("pass\tlog_z\tess_ais\tn_finite\tdrift\n")
	converged := false
	for pass := 1; pass <= prob.Run.MaxPasses; pass++ {
		res, err := ch.Advance()
		if err != nil {
			return err
		}

		drift := ch.Drift()
		sp.trace.Printf("%d\t%.6f\t%.6f\t%.0f\t%.4f\n",
			pass, res.Diag["log_z"], res.Diag["ess_ais"], res.Diag["n_finite_ais_samples"], drift)
		if sp.verbose {
			sp.out.Printf("Pass %4d | log_z:%10.5f ESS:%6.3f drift:%7.3f | %s\n",
				pass, res.Diag["log_z"], res.Diag["ess_ais"], drift, acceptSummary(res.Diag, sched.Intermediate()))
		}
		if mon != nil {
			mon.Record(res, drift, prob.Run.BatchSize, sched.Intermediate())
			mon.RunTime.Set(time.Since(startTime).Seconds())
		}

		if ch.Converged(prob.Run.Tolerance) {
			converged = true
			break
		}
	}

	runTime := time.Since(startTime).Seconds()
	if converged {
		sp.out.Printf("Converged after %d passes in %.3fs\n", ch.TotalRuns, runTime)
	} else {
		sp.out.Printf("No convergence after %d passes in %.3fs (drift %.3f)\n", ch.TotalRuns, runTime, ch.Drift())
	}

	estimates := ch.History.Values()
	sp.out.Printf("log Z: %.6f (window mean %.6f over %d passes)\n",
		ch.Last.Diag["log_z"], finiteMean(estimates), len(estimates))
	sp.out.Printf("ESS: q->p %.4f, AIS %.4f\n", ch.Last.Diag["ess_q_p"], ch.Last.Diag["ess_ais"])

	carry, sub := ch.State.Key.Next()
	ch.State.Key = carry
	resampled, _, err := sampler.Resample(ch.Last.X, ch.Last.LogW, sub.Generator())
	if err != nil {
		return errors.Wrap(err, "Could not resample final batch")
	}
	sp.out.Printf("Resampled mean: %8.4f\n", sampler.WeightedMean(resampled, make([]float64, prob.Run.BatchSize)))
	sp.out.Printf("Weighted mean:  %8.4f\n", sampler.WeightedMean(ch.Last.X, ch.Last.LogW))

	for _, k := range ch.Last.Diag.Keys() {
		sp.trace.Printf("# %s\t%v\n", k, ch.Last.Diag[k])
	}
	return nil
}

func acceptSummary(diag sampler.Diagnostics, nInter int) string {
	parts := make([]string, 0, nInter)
	for k := 1; k <= nInter; k++ {
		parts = append(parts, fmt.Sprintf("%.2f@%.3g",
			diag[sampler.DistKey(k, "accept")], diag[sampler.DistKey(k, "step_size")]))
	}
	return strings.Join(parts, " ")
}

func finiteMean(vals []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range vals {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
