package database

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// storeFile is the persisted artifact: the embedding length, the ordered vectors
// and the parallel ordered labels.
type storeFile struct {
	Version int
	Dim     int
	Vectors [][]float32
	Labels  []string
}

// FileBackend persists the store as a single gob file replaced atomically on save.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Location returns the artifact path.
func (b *FileBackend) Location() string {
	return b.path
}

// Load reads the artifact. A missing file yields ErrStoreNotFound.
func (b *FileBackend) Load(_ context.Context) ([]Entry, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	var sf storeFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decoding store file: %w", err)
	}
	if sf.Version != storeFormatVersion {
		return nil, fmt.Errorf("unsupported store format version %d", sf.Version)
	}
	if len(sf.Vectors) != len(sf.Labels) {
		return nil, fmt.Errorf("store file has %d vectors but %d labels", len(sf.Vectors), len(sf.Labels))
	}

	entries := make([]Entry, len(sf.Vectors))
	for i := range sf.Vectors {
		if len(sf.Vectors[i]) != sf.Dim {
			return nil, fmt.Errorf("vector %d has length %d, header says %d", i, len(sf.Vectors[i]), sf.Dim)
		}
		entries[i] = Entry{Embedding: sf.Vectors[i], Label: sf.Labels[i]}
	}
	return entries, nil
}

// Save writes all entries to a temp file next to the artifact and renames it into place.
func (b *FileBackend) Save(_ context.Context, entries []Entry) error {
	sf := storeFile{
		Version: storeFormatVersion,
		Vectors: make([][]float32, len(entries)),
		Labels:  make([]string, len(entries)),
	}
	for i, e := range entries {
		sf.Vectors[i] = e.Embedding
		sf.Labels[i] = e.Label
	}
	if len(entries) > 0 {
		sf.Dim = len(entries[0].Embedding)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sf); err != nil {
		return fmt.Errorf("encoding store file: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".embeddings-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("renaming store file: %w", err)
	}
	return nil
}
