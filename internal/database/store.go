package database

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable view of the store at one point in time.
type Snapshot struct {
	entries []Entry
	dim     int
	version uint64
}

// Entries returns the entries in store order. The slice is shared and read-only.
func (s *Snapshot) Entries() []Entry {
	return s.entries
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Dim returns the established embedding length, 0 for an empty store.
func (s *Snapshot) Dim() int {
	return s.dim
}

// Version increases with every published write.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Count returns the number of entries enrolled under label.
func (s *Snapshot) Count(label string) int {
	n := 0
	for i := range s.entries {
		if s.entries[i].Label == label {
			n++
		}
	}
	return n
}

// LabelCounts returns per-label entry counts sorted by label.
func (s *Snapshot) LabelCounts() []LabelCount {
	counts := make(map[string]int)
	for i := range s.entries {
		counts[s.entries[i].Label]++
	}
	result := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		result = append(result, LabelCount{Label: label, Count: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Label < result[j].Label })
	return result
}

// EmbeddingStore is the ordered collection of enrolled embeddings. Readers take a
// Snapshot without locking; writers build a new collection and swap the whole
// reference, so a reader sees either the state before or after a write, never a mix.
type EmbeddingStore struct {
	backend Backend
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serializes writers and persistence
	version uint64

	indexMu sync.Mutex
	index   *CandidateIndex
}

// NewEmbeddingStore creates an empty store persisted through backend.
func NewEmbeddingStore(backend Backend) *EmbeddingStore {
	s := &EmbeddingStore{backend: backend}
	s.current.Store(&Snapshot{})
	return s
}

// Snapshot returns the current immutable view.
func (s *EmbeddingStore) Snapshot() *Snapshot {
	return s.current.Load()
}

// Location describes where the store is persisted.
func (s *EmbeddingStore) Location() string {
	return s.backend.Location()
}

// Load replaces the in-memory collection with the persisted one. A store that was
// never persisted loads as empty; an unreadable or inconsistent one is a StoreIOError.
func (s *EmbeddingStore) Load(ctx context.Context) error {
	entries, err := s.backend.Load(ctx)
	if errors.Is(err, ErrStoreNotFound) {
		entries, err = nil, nil
	}
	if err != nil {
		return &StoreIOError{Op: "load", Location: s.backend.Location(), Err: err}
	}

	dim, err := checkDims(0, entries)
	if err != nil {
		return &StoreIOError{Op: "load", Location: s.backend.Location(), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(entries, dim)
	return nil
}

// Save persists the current collection.
func (s *EmbeddingStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(ctx, s.current.Load().entries); err != nil {
		return &StoreIOError{Op: "save", Location: s.backend.Location(), Err: err}
	}
	return nil
}

// Append adds entries at the end. The first entry of an empty store establishes
// the embedding length; any entry differing from it is rejected and nothing is written.
func (s *EmbeddingStore) Append(entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	dim, err := checkDims(cur.dim, entries)
	if err != nil {
		return err
	}

	next := make([]Entry, 0, len(cur.entries)+len(entries))
	next = append(next, cur.entries...)
	next = append(next, entries...)
	s.publish(next, dim)
	return nil
}

// ReplaceLabel removes every entry labeled label and appends entries, as a single
// swap. If label was the only subject, entries may establish a new length.
func (s *EmbeddingStore) ReplaceLabel(label string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	kept := make([]Entry, 0, len(cur.entries)+len(entries))
	for _, e := range cur.entries {
		if e.Label != label {
			kept = append(kept, e)
		}
	}

	dim := 0
	if len(kept) > 0 {
		dim = cur.dim
	}
	dim, err := checkDims(dim, entries)
	if err != nil {
		return err
	}

	s.publish(append(kept, entries...), dim)
	return nil
}

// ReplaceAll rebuilds the whole collection from entries.
func (s *EmbeddingStore) ReplaceAll(entries []Entry) error {
	dim, err := checkDims(0, entries)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(slices.Clone(entries), dim)
	return nil
}

// RemoveLabel removes every entry labeled label and returns how many were removed.
func (s *EmbeddingStore) RemoveLabel(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	kept := make([]Entry, 0, len(cur.entries))
	for _, e := range cur.entries {
		if e.Label != label {
			kept = append(kept, e)
		}
	}

	removed := len(cur.entries) - len(kept)
	if removed == 0 {
		return 0
	}
	dim := cur.dim
	if len(kept) == 0 {
		dim = 0
	}
	s.publish(kept, dim)
	return removed
}

// Restore publishes the content of an earlier snapshot again, e.g. after a write
// could not be persisted.
func (s *EmbeddingStore) Restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(snap.entries, snap.dim)
}

// publish swaps in a new snapshot. Callers hold s.mu.
func (s *EmbeddingStore) publish(entries []Entry, dim int) {
	s.version++
	s.current.Store(&Snapshot{entries: entries, dim: dim, version: s.version})
}

// Nearest returns up to k approximate nearest entries from an HNSW index built over
// the current snapshot. It is meant for diagnostics; classification uses a linear scan.
func (s *EmbeddingStore) Nearest(probe []float32, k int) ([]Candidate, error) {
	snap := s.Snapshot()

	s.indexMu.Lock()
	if s.index == nil || s.index.Version() != snap.Version() {
		s.index = BuildCandidateIndex(snap)
	}
	index := s.index
	s.indexMu.Unlock()

	return index.Search(probe, k)
}
