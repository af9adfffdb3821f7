package results

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/iobis/dupfinder/similarity"
)

// Header is the first line of every results file.
const Header = "x y similarity"

var (
	// ErrInvalidID is returned for a dataset id that would break the line format.
	ErrInvalidID = errors.New("results: invalid dataset id")
	// ErrBadHeader is returned when a file does not start with Header.
	ErrBadHeader = errors.New("results: bad header")
)

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("results: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidateID checks that id can be written unquoted.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.IndexFunc(id, isDelim) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func isDelim(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

// AppendResult appends one formatted line to dst.
func AppendResult(dst []byte, r similarity.Result) ([]byte, error) {
	if err := ValidateID(r.X); err != nil {
		return dst, err
	}
	if err := ValidateID(r.Y); err != nil {
		return dst, err
	}
	dst = append(dst, r.X...)
	dst = append(dst, ' ')
	dst = append(dst, r.Y...)
	dst = append(dst, ' ')
	dst = strconv.AppendFloat(dst, r.Similarity, 'f', -1, 64)
	return append(dst, '\n'), nil
}

// Writer writes a results file. The header is written before the first row,
// or by Flush if there are no rows.
type Writer struct {
	bw     *bufio.Writer
	header bool
	line   []byte
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 1<<16)}
}

func (w *Writer) writeHeader() error {
	if w.header {
		return nil
	}
	w.header = true
	_, err := w.bw.WriteString(Header + "\n")
	return err
}

// Write writes one row.
func (w *Writer) Write(r similarity.Result) error {
	line, err := AppendResult(w.line[:0], r)
	if err != nil {
		return err
	}
	w.line = line
	return w.writeLines(line)
}

// writeLines writes pre-rendered rows.
func (w *Writer) writeLines(p []byte) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	_, err := w.bw.Write(p)
	return err
}

// Flush writes buffered data, including the header if nothing was written yet.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.bw.Flush()
}

// Scan reads a results file and calls fn for every row.
func Scan(r io.Reader, fn func(similarity.Result) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	seenHeader := false
	for sc.Scan() {
		line++
		fields := strings.FieldsFunc(sc.Text(), isDelim)
		if len(fields) == 0 {
			continue
		}
		if !seenHeader {
			if len(fields) != 3 || fields[0] != "x" || fields[1] != "y" || fields[2] != "similarity" {
				return &ParseError{Line: line, Err: ErrBadHeader}
			}
			seenHeader = true
			continue
		}
		if len(fields) != 3 {
			return &ParseError{Line: line, Err: fmt.Errorf("expected 3 fields, got %d", len(fields))}
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return &ParseError{Line: line, Err: err}
		}
		if err := fn(similarity.Result{X: fields[0], Y: fields[1], Similarity: v}); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if !seenHeader {
		return &ParseError{Line: line, Err: ErrBadHeader}
	}
	return nil
}

// ReadAll reads every row of a results file.
func ReadAll(r io.Reader) ([]similarity.Result, error) {
	var out []similarity.Result
	err := Scan(r, func(res similarity.Result) error {
		out = append(out, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
