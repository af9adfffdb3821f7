package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/iobis/dupfinder"
	"github.com/spf13/cobra"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Aggregate occurrences and compute the similarity of every dataset pair",
	Long: `Aggregate occurrences into per-dataset cell counts, compute the similarity of
every dataset pair and write the pairs to results parts in the run directory.

Ranges that fail are recorded in the run manifest; finish them with "dupfinder resume".

Examples:
  # Local CSV or TSV export, optionally compressed (.zst, .gz, .lz4)
  dupfinder compute --input occurrence.tsv.gz

  # Read occurrences from Postgres
  dupfinder compute --postgres-dsn postgres://obis@localhost/obis

  # Start over, discarding the previous run
  dupfinder compute --input occurrence.csv --reset`,
	RunE: runCompute,
}

func init() {
	f := computeCmd.Flags()
	addInputFlags(computeCmd)
	f.Int("precision", 0, "Geohash precision of a cell (1-12)")
	f.String("metric", "", "Similarity metric (cosine, jaccard)")
	f.String("compression", "", "Compression of results parts (none, zstd, lz4)")
	f.Int("chunk-size", 0, "Outer rows per work range")
	f.Bool("reset", false, "Delete an existing run before computing")
}

func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("input", "", "Occurrence file (CSV or TSV, optionally compressed)")
	f.Bool("blob-input", false, "Read --input from the blob store instead of the local filesystem")
	f.String("postgres-dsn", "", "Read occurrences from this Postgres database")
	f.Int("workers", 0, "Number of concurrent similarity workers")
}

func runCompute(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		if err := e.pipeline.Reset(ctx); err != nil {
			return err
		}
	}

	src, release, err := openSource(ctx, e.cfg.Input, e.store)
	if err != nil {
		return err
	}
	defer release()

	report, err := e.pipeline.Run(ctx, src)
	if errors.Is(err, dupfinder.ErrRunExists) {
		return fmt.Errorf("%w: use \"dupfinder resume\" or pass --reset", err)
	}
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

func printReport(w io.Writer, r *dupfinder.RunReport) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", bold("Run"), r.RunID)
	fmt.Fprintf(w, "  Records:  %d scanned, %d retained, %d dropped\n",
		r.Aggregation.Scanned, r.Aggregation.Retained, r.Aggregation.Dropped)
	fmt.Fprintf(w, "  Datasets: %d over %d cells\n", r.Datasets, r.Cells)
	if r.Part == "" {
		fmt.Fprintf(w, "%s nothing left to compute\n", green("✓"))
		return
	}
	fmt.Fprintf(w, "  Pairs:    %d written to %s in %s\n", r.Pairs, r.Part, r.Duration.Round(time.Millisecond))

	if len(r.Failed) == 0 && r.Remaining == 0 {
		fmt.Fprintf(w, "%s run complete\n", green("✓"))
		return
	}
	fmt.Fprintf(w, "%s %d range(s) failed, %d missing; run \"dupfinder resume\"\n",
		yellow("!"), len(r.Failed), r.Remaining)
	for _, f := range r.Failed {
		fmt.Fprintf(w, "    %s: %v\n", f.Range, f.Err)
	}
}
