package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/iobis/dupfinder/codec"
	"github.com/iobis/dupfinder/metadata"
	"github.com/iobis/dupfinder/shortlist"
	"github.com/spf13/cobra"
)

var shortlistCmd = &cobra.Command{
	Use:   "shortlist",
	Short: "Rank likely duplicate dataset pairs",
	Long: `Read the computed pairs, keep those strictly above the threshold and rank them by
similarity, then by the combined record count of both datasets. Nothing is recomputed.

Metadata sources:
  none    ids only
  json    OBIS API dataset response saved to --metadata-path
  sqlite  table with columns id, url, title, records in --metadata-path
  dynamo  DynamoDB table keyed by id
  http    OBIS API (--metadata-url)

Examples:
  dupfinder shortlist --threshold 0.9
  dupfinder shortlist --metadata sqlite --metadata-path datasets.db --json`,
	RunE: runShortlist,
}

func init() {
	f := shortlistCmd.Flags()
	f.Float64("threshold", 0, "Similarity a pair must exceed")
	f.String("metadata", "", "Metadata source (none, json, sqlite, dynamo, http)")
	f.String("metadata-path", "", "File for the json and sqlite sources")
	f.String("metadata-url", "", "Base URL for the http source")
	f.Int("limit", 0, "Show at most this many pairs (0 for all)")
	f.Bool("json", false, "Print candidates as JSON")
}

func runShortlist(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	lookup, release, err := openLookup(ctx, e.cfg.Metadata)
	if err != nil {
		return err
	}
	defer release()

	candidates, stats, err := e.pipeline.Shortlist(ctx, lookup)
	if err != nil {
		return err
	}
	if limit := e.cfg.Shortlist.Limit; limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := codec.MarshalIndent(codec.Default, candidates)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	printCandidates(cmd.OutOrStdout(), candidates, stats, e.cfg.Shortlist.Threshold)
	return nil
}

func printCandidates(w io.Writer, candidates []shortlist.Candidate, stats shortlist.Stats, threshold float64) {
	if len(candidates) == 0 {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(w, "%s No pairs above %.2f among %d\n", green("✓"), threshold, stats.Considered)
		return
	}

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSIMILARITY\tRECORDS\tX\tY\tX TITLE\tY TITLE")
	for i, c := range candidates {
		sim := fmt.Sprintf("%.4f", c.Similarity)
		if c.Similarity >= 0.99 {
			sim = red(sim)
		} else {
			sim = yellow(sim)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			i+1, sim, c.CombinedRecords(), c.X, c.Y, title(c.XMeta), title(c.YMeta))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n%d of %d pairs above %.2f", stats.Kept, stats.Considered, threshold)
	if stats.Warnings > 0 {
		fmt.Fprintf(w, ", %s", yellow(fmt.Sprintf("%d dataset(s) without metadata", stats.Warnings)))
	}
	fmt.Fprintln(w)
}

func title(d *metadata.Dataset) string {
	if d == nil {
		return "-"
	}
	const width = 48
	if r := []rune(d.Title); len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return d.Title
}
