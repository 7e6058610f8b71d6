package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/askiada/emflow/pkg/pipeline/measure"
	"github.com/askiada/emflow/pkg/pipeline/model"
	"github.com/askiada/emflow/pkg/workflow"
)

func workflowCommand(kind workflow.Kind, use, short, long string) (*cobra.Command, *overrides) {
	o := &overrides{}

	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		GroupID: gWorkflow,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}

			job := workflow.Job{Kind: kind, Source: args[0], Workspace: args[1], Component: args[2]}

			res, err := workflow.Run(cmd.Context(), cfg, job, workflow.WithLogger(logrus.StandardLogger()))
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), res)

			if !res.Success {
				return errWorkflowFailed
			}

			return nil
		},
	}

	o.addOutputFlags(cmd)

	return cmd, o
}

func NewSParameterCommand() *cobra.Command {
	cmd, o := workflowCommand(workflow.SParameterKind,
		"sparam <source> <workspace> <component>",
		"Import the S-parameters of a simulation as a component",
		`Import the S-parameters of a simulation as a component.

The source is a solution export (.yaml) or a Touchstone file (.sNp). The
workflow extracts the samples, converts them, imports the converted file into
the workspace, then generates and verifies a testbench. Testbench generation
and verification are optional: when they fail the run is reported DEGRADED
but still succeeds.`)

	o.addTestbenchFlags(cmd)

	return cmd
}

func NewMatrixCommand() *cobra.Command {
	cmd, o := workflowCommand(workflow.MatrixKind,
		"matrix <source> <workspace> <component>",
		"Import the inductance, resistance and capacitance matrices of a simulation",
		`Import the inductance, resistance and capacitance matrices of a simulation.

The workflow extracts the matrices selected by --type from the solution
export, writes one numeric matrix file per matrix and imports them all into
the workspace.`)

	cmd.Flags().StringVar(&o.extractType, "type", "", "matrices to extract: all, inductance, resistance or capacitance (default from config)")

	return cmd
}

func NewBatchCommand() *cobra.Command {
	o := &overrides{}

	cmd := &cobra.Command{
		Use:     "batch <batch-file>",
		Short:   "Run the workflows listed in a batch file",
		GroupID: gWorkflow,
		Long: `Run the workflows listed in a batch file.

The batch file is YAML:

  jobs:
    - kind: sparam
      source: exports/lowpass.yaml
      workspace: designs/ws
      component: lowpass

Jobs run concurrently, each in <output-dir>/<component>. Relative paths are
resolved against the directory of the batch file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}

			jobs, err := workflow.LoadJobs(args[0])
			if err != nil {
				return err
			}

			msr := measure.NewDefaultMeasure()

			results, err := workflow.RunBatch(cmd.Context(), cfg, jobs, cfg.BatchConcurrency,
				workflow.WithLogger(logrus.StandardLogger()),
				workflow.WithMeasure(msr),
			)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				printResult(cmd.OutOrStdout(), res)

				if !res.Success {
					failed++
				}
			}

			printAverages(cmd, msr)

			if failed > 0 {
				logrus.WithField("failed", failed).Error("some workflows failed")

				return errWorkflowFailed
			}

			return nil
		},
	}

	o.addOutputFlags(cmd)
	o.addTestbenchFlags(cmd)
	cmd.Flags().StringVar(&o.extractType, "type", "", "matrices to extract for matrix jobs")
	cmd.Flags().IntVarP(&o.concurrency, "concurrency", "j", 0, "number of jobs run at once (default from config)")

	return cmd
}

func printAverages(cmd *cobra.Command, msr measure.Measure) {
	cmd.Println(bold("Average step durations:"))

	for _, name := range []string{
		workflow.ExtractStep,
		workflow.ConvertStep,
		workflow.ExtractMatricesStep,
		workflow.ExportMatricesStep,
		workflow.ImportStep,
		workflow.TestbenchStep,
		workflow.VerifyStep,
	} {
		mt := msr.GetMetric(name)
		if mt == nil || mt.Runs() == 0 {
			continue
		}

		cmd.Printf("  %-20s %-12s failed %d/%d\n", name, mt.AVGDuration(), mt.Failures(), mt.Runs())
	}

	if end := msr.GetMetric(model.EndStep.Name); end != nil {
		cmd.Printf("  %-20s %s\n", "total", end.GetTotalDuration())
	}
}
