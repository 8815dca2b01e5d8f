package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/grais/problem"
)

// startupParams is everything a command needs after flag parsing
type startupParams struct {
	problemFile string
	traceFile   string
	monitorAddr string
	verbose     bool
	randomSeed  int64
	runID       string

	out      *log.Logger
	trace    *log.Logger
	traceOut io.WriteCloser
}

var sp startupParams

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "grais",
	Short: "Annealed Importance Sampling",
	Long: `grais estimates normalizing constants and draws weighted samples
from unnormalized densities with annealed importance sampling.
Among other features:

  - YAML problem files describing the proposal, target and sampler
  - Random-walk Metropolis and Hamiltonian Monte Carlo transition kernels
  - Linear and geometric temperature schedules with step size tuning
  - Reproducible results for a given seed regardless of worker count
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return sp.setup(cmd.OutOrStdout())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		sp.teardown()
	},
}

// setup creates the loggers and the run id
func (sp *startupParams) setup(stdout io.Writer) error {
	sp.runID = uuid.New().String()
	sp.out = log.New(stdout, "", log.Ltime)

	if len(sp.traceFile) > 0 {
		f, err := os.Create(sp.traceFile)
		if err != nil {
			return errors.Wrapf(err, "Could not create trace file %s", sp.traceFile)
		}
		sp.traceOut = f
		sp.trace = log.New(f, "", 0)
	} else {
		sp.trace = log.New(io.Discard, "", 0)
	}

	if sp.verbose {
		sp.out.Printf("grais run %s\n", sp.runID)
		sp.out.Printf("Problem:  %s\n", sp.problemFile)
		sp.out.Printf("Rnd Seed: %d\n", sp.randomSeed)
		sp.out.Printf("Trace:    %s\n", sp.traceFile)
	}
	sp.trace.Printf("# run %s seed %d\n", sp.runID, sp.randomSeed)
	return nil
}

func (sp *startupParams) teardown() {
	if sp.traceOut != nil {
		sp.traceOut.Close()
		sp.traceOut = nil
	}
}

// loadProblem reads the problem file, or returns the default problem when
// no file was given.
func (sp *startupParams) loadProblem() (*problem.Problem, error) {
	reader := problem.YAMLReader{}
	if len(sp.problemFile) < 1 {
		sp.out.Printf("No problem file: using the default problem\n")
		p := problem.Default()
		return p, p.Check()
	}

	sp.out.Printf("Reading problem from %s\n", sp.problemFile)
	p, err := problem.NewProblemFromFile(reader, sp.problemFile)
	if err != nil {
		return nil, err
	}

	if sp.verbose {
		data, err := reader.WriteProblem(p)
		if err != nil {
			return nil, err
		}
		sp.trace.Printf("# problem\n%s", data)
	}
	return p, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&sp.problemFile, "problem", "p", "", "YAML problem file (default is a 2-d standard normal)")
	rootCmd.PersistentFlags().Int64VarP(&sp.randomSeed, "seed", "r", 1, "Random seed to use")
	rootCmd.PersistentFlags().BoolVarP(&sp.verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	rootCmd.PersistentFlags().StringVarP(&sp.traceFile, "trace", "t", "", "Trace file for per-pass diagnostics")
	rootCmd.PersistentFlags().StringVar(&sp.monitorAddr, "monitor", "", "Address to serve Prometheus /metrics on during run (e.g. :8000)")

	rootCmd.AddCommand(runCmd, estimateCmd, scheduleCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
