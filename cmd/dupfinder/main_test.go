package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iobis/dupfinder"
	"github.com/iobis/dupfinder/metadata"
	"github.com/iobis/dupfinder/shortlist"
	"github.com/iobis/dupfinder/similarity"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("dataset_id,decimalLongitude,decimalLatitude,aphiaid,date_year\n")
	for i := range 20 {
		lon, lat := float64(i), float64(i)/2
		fmt.Fprintf(&sb, "original,%v,%v,%d,%d\n", lon, lat, 100+i%3, 2000+i%4)
		fmt.Fprintf(&sb, "copy,%v,%v,%d,%d\n", lon, lat, 100+i%3, 2000+i%4)
		fmt.Fprintf(&sb, "other,%v,%v,%d,%d\n", -lon, -lat, 900+i%5, 1990)
	}
	path := filepath.Join(dir, "occurrence.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)
	common := []string{
		"--config", filepath.Join(dir, "none.yaml"),
		"--storage-path", filepath.Join(dir, "store"),
		"--log-level", "error",
	}

	out, err := execute(t, append([]string{"compute", "--input", input, "--workers", "2"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Datasets: 3")
	assert.Contains(t, out, "run complete")

	_, err = execute(t, append([]string{"compute", "--input", input}, common...)...)
	assert.ErrorIs(t, err, dupfinder.ErrRunExists)

	out, err = execute(t, append([]string{"status"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Pairs:     3 of 3")
	assert.Contains(t, out, "complete")

	out, err = execute(t, append([]string{"shortlist", "--json"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"x": "copy"`)
	assert.Contains(t, out, `"y": "original"`)
	assert.NotContains(t, out, `"other"`)

	exported := filepath.Join(dir, "pairs.txt")
	_, err = execute(t, append([]string{"export", "--output", exported}, common...)...)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "x y similarity", lines[0])
	assert.Len(t, lines, 4)

	out, err = execute(t, append([]string{"resume", "--input", input}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing left to compute")
}

func TestLoadConfigFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("config", filepath.Join(t.TempDir(), "none.yaml"), "")
	cmd.Flags().Float64("threshold", 0, "")
	cmd.Flags().Int("precision", 0, "")
	cmd.Flags().String("storage", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"--threshold", "0.95"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 0.95, cfg.Shortlist.Threshold)
	assert.Equal(t, 2, cfg.Run.Precision, "unset flags keep the config value")

	require.NoError(t, cmd.ParseFlags([]string{"--storage", "ftp"}))
	_, err = loadConfig(cmd)
	assert.ErrorContains(t, err, "storage.backend")
}

func TestPrintCandidates(t *testing.T) {
	var buf bytes.Buffer
	printCandidates(&buf, nil, shortlist.Stats{Considered: 10}, 0.85)
	assert.Contains(t, buf.String(), "No pairs above 0.85 among 10")

	buf.Reset()
	candidates := []shortlist.Candidate{{
		X: "a", Y: "b", Similarity: 0.999,
		XMeta: &metadata.Dataset{ID: "a", Title: strings.Repeat("t", 60), RecordCount: 5},
	}}
	printCandidates(&buf, candidates, shortlist.Stats{Considered: 3, Kept: 1, Warnings: 1}, 0.85)
	out := buf.String()
	assert.Contains(t, out, "0.9990")
	assert.Contains(t, out, "…")
	assert.Contains(t, out, "1 of 3 pairs above 0.85")
	assert.Contains(t, out, "1 dataset(s) without metadata")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &dupfinder.RunReport{
		RunID:     "r",
		Part:      "pairs-000001.txt.zst",
		Failed:    []similarity.RangeFailure{{Range: similarity.Range{Start: 0, End: 2}, Err: fmt.Errorf("boom")}},
		Remaining: 1,
	})
	assert.Contains(t, buf.String(), "1 range(s) failed, 1 missing")
	assert.Contains(t, buf.String(), "[0,2): boom")
}
