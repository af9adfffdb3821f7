package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every computed pair to a single results file",
	Long: `Merge the run's results parts into one whitespace-delimited file with the header
"x y similarity". Pairs present in more than one part are written once.

Examples:
  dupfinder export --output pairs.txt
  dupfinder export | sort -k3 -gr | head`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringP("output", "o", "-", "Output file, - for stdout")
}

func runExport(cmd *cobra.Command, _ []string) (err error) {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	out, _ := cmd.Flags().GetString("output")
	var w io.Writer = cmd.OutOrStdout()
	if out != "-" {
		f, ferr := os.Create(out)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		bw := bufio.NewWriter(f)
		defer func() {
			if ferr := bw.Flush(); err == nil {
				err = ferr
			}
		}()
		w = bw
	}

	n, err := e.pipeline.Export(cmd.Context(), w)
	if err != nil {
		return err
	}
	if out != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d pairs to %s\n", n, out)
	}
	return nil
}
