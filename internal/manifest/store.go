package manifest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/iobis/dupfinder/blobstore"
	"github.com/iobis/dupfinder/codec"
)

const (
	ManifestFileName = "MANIFEST"
	CurrentFileName  = "CURRENT"
)

// Store manages manifest files and atomic updates under a directory prefix.
type Store struct {
	store blobstore.BlobStore
	dir   string
	codec codec.Codec
	mu    sync.Mutex
}

// NewStore creates a new manifest store. A nil codec uses codec.Default.
func NewStore(store blobstore.BlobStore, dir string, c codec.Codec) *Store {
	if c == nil {
		c = codec.Default
	}
	return &Store{store: store, dir: strings.Trim(dir, "/"), codec: c}
}

func (s *Store) key(name string) string {
	if s.dir == "" {
		return name
	}
	return path.Join(s.dir, name)
}

func fileName(id uint64) string {
	return fmt.Sprintf("%s-%06d.json", ManifestFileName, id)
}

// Load loads the current manifest.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	return s.LoadVersion(ctx, 0)
}

// LoadVersion loads a specific save ID. 0 means latest.
func (s *Store) LoadVersion(ctx context.Context, id uint64) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fileName(id)
	if id == 0 {
		content, err := blobstore.ReadAll(ctx, s.store, s.key(CurrentFileName))
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		name = strings.TrimSpace(string(content))
	}
	return s.read(ctx, name)
}

func (s *Store) read(ctx context.Context, name string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, s.store, s.key(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", name, err)
	}
	m := &Manifest{}
	if err := s.codec.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", name, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, m.Version)
	}
	return m, nil
}

// ListVersions returns all readable manifest versions, oldest first.
// Corrupted or unreadable manifests are skipped.
func (s *Store) ListVersions(ctx context.Context) ([]*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.store.List(ctx, s.key(ManifestFileName))
	if err != nil {
		return nil, err
	}
	var manifests []*Manifest
	for _, f := range files {
		if path.Ext(f) != ".json" {
			continue
		}
		m, err := s.read(ctx, path.Base(f))
		if err != nil {
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// Save atomically saves a new manifest version and points CURRENT at it.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.ID++

	data, err := codec.MarshalIndent(s.codec, m)
	if err != nil {
		m.ID--
		return err
	}

	name := fileName(m.ID)
	if err := s.store.Put(ctx, s.key(name), data); err != nil {
		m.ID--
		return err
	}
	return s.store.Put(ctx, s.key(CurrentFileName), []byte(name))
}

// DeleteVersion deletes the manifest file for the given save ID.
func (s *Store) DeleteVersion(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, s.key(fileName(id)))
}

// Prune deletes all versions older than the current one.
func (s *Store) Prune(ctx context.Context, current uint64) error {
	for id := uint64(1); id < current; id++ {
		if err := s.DeleteVersion(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Clear deletes every manifest version and the CURRENT pointer.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.store.List(ctx, s.key(ManifestFileName+"-"))
	if err != nil {
		return err
	}
	// CURRENT first, so a crash leaves no pointer to a deleted version.
	if err := s.store.Delete(ctx, s.key(CurrentFileName)); err != nil {
		return err
	}
	for _, f := range files {
		if err := s.store.Delete(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
