package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/iobis/dupfinder/internal/manifest"
	"github.com/iobis/dupfinder/similarity"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the progress of the current run",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	m, err := e.pipeline.Manifest(cmd.Context())
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), m)
	return nil
}

func printStatus(w io.Writer, m *manifest.Manifest) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	var done int64
	for _, r := range m.Completed {
		done += r.Pairs(m.Datasets)
	}
	total := similarity.TotalPairs(m.Datasets)

	fmt.Fprintf(w, "Run %s (manifest %d)\n", m.RunID, m.ID)
	fmt.Fprintf(w, "  Created:   %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Config:    precision %d, %s, chunk %d, %s\n",
		m.Config.Precision, m.Config.Metric, m.Config.ChunkSize, m.Config.Compression)
	fmt.Fprintf(w, "  Datasets:  %d over %d cells (fingerprint %08x)\n", m.Datasets, m.Cells, m.Fingerprint)
	fmt.Fprintf(w, "  Pairs:     %d of %d\n", done, total)
	fmt.Fprintf(w, "  Parts:     %d\n", len(m.Parts))

	if m.Done() {
		fmt.Fprintf(w, "%s complete\n", green("✓"))
		return
	}
	fmt.Fprintf(w, "%s %d range(s) missing\n", yellow("!"), len(m.Missing()))
	for _, f := range m.Failed {
		fmt.Fprintf(w, "    %s failed: %s\n", f.Range, f.Error)
	}
}
