package results

import (
	"sync"
	"sync/atomic"

	"github.com/iobis/dupfinder/similarity"
)

// Sink is a similarity.Sink writing to a Writer.
// Each batch is rendered outside the lock and written with one call, so lines
// from concurrent workers never interleave.
type Sink struct {
	mu   sync.Mutex
	w    *Writer
	rows atomic.Int64
	pool sync.Pool
}

var _ similarity.Sink = (*Sink)(nil)

// NewSink creates a Sink on w.
func NewSink(w *Writer) *Sink {
	return &Sink{w: w}
}

// WriteBatch implements similarity.Sink. A batch with an invalid id is
// rejected as a whole.
func (s *Sink) WriteBatch(batch []similarity.Result) error {
	buf, _ := s.pool.Get().(*[]byte)
	if buf == nil {
		b := make([]byte, 0, 64*len(batch))
		buf = &b
	}
	defer s.pool.Put(buf)

	p := (*buf)[:0]
	var err error
	for _, r := range batch {
		if p, err = AppendResult(p, r); err != nil {
			return err
		}
	}
	*buf = p

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.writeLines(p); err != nil {
		return err
	}
	s.rows.Add(int64(len(batch)))
	return nil
}

// Rows returns the number of rows written.
func (s *Sink) Rows() int64 {
	return s.rows.Load()
}

// Flush flushes the underlying writer.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}
