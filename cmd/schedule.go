package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/CraigKelly/grais/anneal"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the temperature schedule for a problem",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := ScheduleOutput(&sp)
		return err
	},
}

// ScheduleOutput builds the problem's temperature schedule and writes one
// beta per line, to the trace file when one is given.
func ScheduleOutput(sp *startupParams) (anneal.Schedule, error) {
	prob, err := sp.loadProblem()
	if err != nil {
		return anneal.Schedule{}, err
	}

	spacing, err := anneal.SpacingByName(prob.AIS.Spacing)
	if err != nil {
		return anneal.Schedule{}, err
	}
	sched, err := anneal.NewSchedule(prob.AIS.NIntermediate, spacing)
	if err != nil {
		return anneal.Schedule{}, err
	}
	sp.out.Printf("Schedule has %d intermediate distributions (%d betas)\n", sched.Intermediate(), sched.Len())

	var target *log.Logger
	if len(sp.traceFile) > 0 {
		sp.out.Printf("Writing schedule to trace file %v\n", sp.traceFile)
		target = sp.trace
	} else {
		target = sp.out
	}

	for i, b := range sched.Betas() {
		target.Printf("%d\t%.10g\n", i, b)
	}
	return sched, nil
}
