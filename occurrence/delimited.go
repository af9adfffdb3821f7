package occurrence

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/iobis/dupfinder/blobstore"
)

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("occurrence: missing column")
	// ErrEmptyInput is returned when the input has no header line.
	ErrEmptyInput = errors.New("occurrence: empty input")
)

// RowError describes a row that could not be parsed.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("occurrence: line %d, column %q: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Columns maps record fields to header names.
type Columns struct {
	DatasetID string `yaml:"dataset_id"`
	Longitude string `yaml:"longitude"`
	Latitude  string `yaml:"latitude"`
	SpeciesID string `yaml:"species_id"`
	Year      string `yaml:"year"`
}

// DefaultColumns returns the column names used by the OBIS occurrence export.
func DefaultColumns() Columns {
	return Columns{
		DatasetID: "dataset_id",
		Longitude: "decimalLongitude",
		Latitude:  "decimalLatitude",
		SpeciesID: "aphiaid",
		Year:      "date_year",
	}
}

func (c Columns) names() []string {
	return []string{c.DatasetID, c.Longitude, c.Latitude, c.SpeciesID, c.Year}
}

// DelimitedOption configures a DelimitedSource.
type DelimitedOption func(*delimitedOptions)

type delimitedOptions struct {
	columns       Columns
	comma         rune
	skipMalformed bool
}

// WithColumns overrides the header names.
func WithColumns(c Columns) DelimitedOption {
	return func(o *delimitedOptions) {
		o.columns = c
	}
}

// WithComma fixes the field delimiter. By default it is sniffed from the header:
// tab when the header contains one, comma otherwise.
func WithComma(r rune) DelimitedOption {
	return func(o *delimitedOptions) {
		o.comma = r
	}
}

// WithSkipMalformed makes unparseable rows count as skipped instead of failing the scan.
func WithSkipMalformed(skip bool) DelimitedOption {
	return func(o *delimitedOptions) {
		o.skipMalformed = skip
	}
}

// DelimitedSource reads a header-first delimited text file.
// Compressed inputs (.zst, .gz, .lz4) are decompressed by name suffix.
type DelimitedSource struct {
	name    string
	open    func(ctx context.Context) (io.ReadCloser, error)
	opts    delimitedOptions
	skipped atomic.Int64
}

func newDelimited(name string, open func(context.Context) (io.ReadCloser, error), optFns []DelimitedOption) *DelimitedSource {
	opts := delimitedOptions{columns: DefaultColumns()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &DelimitedSource{name: name, open: open, opts: opts}
}

// NewReaderSource reads from r. name is used only to pick the decompressor.
// The reader is consumed by the first Scan.
func NewReaderSource(r io.Reader, name string, optFns ...DelimitedOption) *DelimitedSource {
	return newDelimited(name, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}, optFns)
}

// NewFileSource reads the file at path.
func NewFileSource(path string, optFns ...DelimitedOption) *DelimitedSource {
	return newDelimited(path, func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	}, optFns)
}

// NewBlobSource reads the named blob from store. Every Scan reopens the blob.
func NewBlobSource(store blobstore.BlobStore, name string, optFns ...DelimitedOption) *DelimitedSource {
	return newDelimited(name, func(ctx context.Context) (io.ReadCloser, error) {
		b, err := store.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		return blobstore.NewReader(ctx, b)
	}, optFns)
}

// Skipped returns the number of malformed rows skipped by the last Scan.
func (s *DelimitedSource) Skipped() int64 {
	return s.skipped.Load()
}

// Name returns the input name.
func (s *DelimitedSource) Name() string {
	return s.name
}

// Scan implements Source.
func (s *DelimitedSource) Scan(ctx context.Context, fn func(Record) error) error {
	s.skipped.Store(0)

	raw, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("occurrence: open %s: %w", s.name, err)
	}
	defer raw.Close()

	rc, err := decompress(s.name, raw)
	if err != nil {
		return fmt.Errorf("occurrence: decompress %s: %w", s.name, err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 1<<16)
	header, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && header != "") {
		if errors.Is(err, io.EOF) {
			return ErrEmptyInput
		}
		return err
	}

	comma := s.opts.comma
	if comma == 0 {
		comma = ','
		if strings.ContainsRune(header, '\t') {
			comma = '\t'
		}
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(header), br))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.LazyQuotes = true

	head, err := cr.Read()
	if err != nil {
		return fmt.Errorf("occurrence: read header: %w", err)
	}
	pos, err := project(head, s.opts.columns)
	if err != nil {
		return err
	}

	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if s.opts.skipMalformed && errors.As(err, &perr) {
				s.skipped.Add(1)
				continue
			}
			return fmt.Errorf("occurrence: %w", err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		line, _ := cr.FieldPos(0)
		rec, err := parseRow(row, pos, s.opts.columns, line)
		if err != nil {
			if s.opts.skipMalformed {
				s.skipped.Add(1)
				continue
			}
			return err
		}

		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// project resolves header positions for the five used columns.
func project(header []string, c Columns) ([5]int, error) {
	var pos [5]int
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	for i, name := range c.names() {
		p, ok := index[name]
		if !ok {
			return pos, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		pos[i] = p
	}
	return pos, nil
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseRow(row []string, pos [5]int, c Columns, line int) (Record, error) {
	var rec Record

	rec.DatasetID = field(row, pos[0])
	if rec.DatasetID == "" {
		return rec, &RowError{Line: line, Column: c.DatasetID, Err: errors.New("empty dataset id")}
	}

	var err error
	if rec.Longitude, err = parseCoord(field(row, pos[1])); err != nil {
		return rec, &RowError{Line: line, Column: c.Longitude, Err: err}
	}
	if rec.Latitude, err = parseCoord(field(row, pos[2])); err != nil {
		return rec, &RowError{Line: line, Column: c.Latitude, Err: err}
	}

	species := field(row, pos[3])
	if rec.SpeciesID, err = strconv.ParseInt(species, 10, 64); err != nil {
		return rec, &RowError{Line: line, Column: c.SpeciesID, Err: err}
	}

	if y := field(row, pos[4]); !missing(y) {
		year, ok, err := parseYear(y)
		if err != nil {
			return rec, &RowError{Line: line, Column: c.Year, Err: err}
		}
		if ok {
			rec = rec.WithYear(year)
		}
	}
	return rec, nil
}

// missing reports whether s is an empty cell or a missing-value marker
// written by R, pandas or SQL exports.
func missing(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return true
	}
	return false
}

// parseCoord returns NaN for a missing value so the record fails validity.
func parseCoord(s string) (float64, error) {
	if missing(s) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseYear accepts integers and integral floats ("1998.0").
// A NaN float is an absent year and yields ok == false.
func parseYear(s string) (year int, ok bool, err error) {
	if y, err := strconv.Atoi(s); err == nil {
		return y, true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("year %q is not an integer", s)
	}
	return int(f), true, nil
}
