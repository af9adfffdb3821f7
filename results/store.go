package results

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/iobis/dupfinder/blobstore"
	"github.com/iobis/dupfinder/similarity"
)

const partPrefix = "pairs-"

// PartName returns the name of the seq-th results part.
func PartName(seq int, c Compression) string {
	return fmt.Sprintf("%s%06d.txt%s", partPrefix, seq, c.Ext())
}

// Store keeps results parts in a blob store under a directory prefix.
type Store struct {
	blobs       blobstore.BlobStore
	dir         string
	compression Compression
}

// NewStore creates a Store writing parts under dir with compression c.
func NewStore(blobs blobstore.BlobStore, dir string, c Compression) *Store {
	return &Store{blobs: blobs, dir: strings.Trim(dir, "/"), compression: c}
}

// Compression returns the codec used for new parts.
func (s *Store) Compression() Compression { return s.compression }

func (s *Store) key(name string) string {
	if s.dir == "" {
		return name
	}
	return path.Join(s.dir, name)
}

// Create starts writing part seq.
func (s *Store) Create(ctx context.Context, seq int) (*PartWriter, error) {
	name := PartName(seq, s.compression)
	blob, err := s.blobs.Create(ctx, s.key(name))
	if err != nil {
		return nil, fmt.Errorf("results: create %s: %w", name, err)
	}
	cw, err := WrapWriter(blob, s.compression)
	if err != nil {
		blob.Close()
		return nil, err
	}
	w := NewWriter(cw)
	return &PartWriter{name: name, blob: blob, cw: cw, sink: NewSink(w)}, nil
}

// Scan reads the named part.
func (s *Store) Scan(ctx context.Context, name string, fn func(similarity.Result) error) error {
	blob, err := s.blobs.Open(ctx, s.key(name))
	if err != nil {
		return fmt.Errorf("results: open %s: %w", name, err)
	}
	raw, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		blob.Close()
		return err
	}
	defer raw.Close()

	r, err := WrapReader(raw, CompressionFor(name))
	if err != nil {
		return err
	}
	defer r.Close()

	if err := Scan(r, fn); err != nil {
		return fmt.Errorf("results: %s: %w", name, err)
	}
	return nil
}

// ReadPart reads every row of the named part.
func (s *Store) ReadPart(ctx context.Context, name string) ([]similarity.Result, error) {
	var out []similarity.Result
	err := s.Scan(ctx, name, func(r similarity.Result) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// Parts lists the part names in the store, sorted.
func (s *Store) Parts(ctx context.Context) ([]string, error) {
	prefix := s.key(partPrefix)
	keys, err := s.blobs.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, path.Base(k))
	}
	return names, nil
}

// Delete removes the named part.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.blobs.Delete(ctx, s.key(name))
}

// PartWriter streams one part. It is a similarity.Sink.
type PartWriter struct {
	name   string
	blob   blobstore.WritableBlob
	cw     interface{ Close() error }
	sink   *Sink
	closed bool
}

var _ similarity.Sink = (*PartWriter)(nil)

// Name returns the part name.
func (p *PartWriter) Name() string { return p.name }

// Rows returns the number of rows written so far.
func (p *PartWriter) Rows() int64 { return p.sink.Rows() }

// WriteBatch implements similarity.Sink.
func (p *PartWriter) WriteBatch(batch []similarity.Result) error {
	return p.sink.WriteBatch(batch)
}

// Close flushes and publishes the part.
func (p *PartWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.sink.Flush()
	if cerr := p.cw.Close(); err == nil {
		err = cerr
	}
	if cerr := p.blob.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("results: close %s: %w", p.name, err)
	}
	return nil
}
