// Command dupfinder finds OBIS datasets that were published more than once.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dupfinder",
	Short: "Find duplicate datasets by comparing their occurrence footprints",
	Long: `dupfinder aggregates occurrence records into counts per dataset and cell
(geohash prefix, species, year), compares every pair of datasets with cosine
similarity and shortlists the pairs that look like the same data published twice.

Examples:
  # Compute all pairs from an export
  dupfinder compute --input occurrence.csv.zst

  # Finish a run that was interrupted
  dupfinder resume --input occurrence.csv.zst

  # Show candidate duplicates with titles from the OBIS API
  dupfinder shortlist --metadata http`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "dupfinder.yaml", "Path to the YAML config file")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("log-format", "", "Log format (text, json)")
	f.String("storage", "", "Blob store backend (local, s3, minio)")
	f.String("storage-path", "", "Root directory of the local blob store")
	f.String("bucket", "", "Bucket of the s3 or minio blob store")
	f.String("prefix", "", "Key prefix inside the bucket")
	f.String("endpoint", "", "MinIO endpoint (host:port)")
	f.String("run-dir", "", "Blob prefix holding the run manifest and results parts")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(computeCmd, resumeCmd, shortlistCmd, exportCmd, statusCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		stop()
		os.Exit(1)
	}
}
