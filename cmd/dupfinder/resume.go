package main

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Compute the ranges a previous run did not complete",
	Long: `Rebuild the dataset vectors from the same input and compute only the ranges the
run manifest does not list as completed. The run's precision, metric, chunk size and
compression are reused. The input must contain the same datasets as the original run.

Examples:
  dupfinder resume --input occurrence.csv.zst`,
	RunE: runResume,
}

func init() {
	addInputFlags(resumeCmd)
}

func runResume(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	src, release, err := openSource(ctx, e.cfg.Input, e.store)
	if err != nil {
		return err
	}
	defer release()

	report, err := e.pipeline.Resume(ctx, src)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}
