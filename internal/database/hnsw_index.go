package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// Candidate is one nearest-neighbor hit from the candidate index.
type Candidate struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
	Position int     `json:"position"` // index of the entry in store order
}

// CandidateIndex wraps an HNSW graph over one store snapshot. It is rebuilt whenever
// the store publishes a new version.
type CandidateIndex struct {
	graph   *hnsw.Graph[int]
	entries []Entry
	dim     int
	version uint64
	mu      sync.RWMutex
}

// BuildCandidateIndex builds the index from a snapshot.
func BuildCandidateIndex(snap *Snapshot) *CandidateIndex {
	idx := &CandidateIndex{
		entries: snap.Entries(),
		dim:     snap.Dim(),
		version: snap.Version(),
	}
	if snap.Len() == 0 {
		return idx
	}

	// Create new graph with cosine distance.
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance

	for i, e := range idx.entries {
		g.Add(hnsw.MakeNode(i, e.Embedding))
	}
	idx.graph = g
	return idx
}

// Version returns the snapshot version the index was built from.
func (idx *CandidateIndex) Version() uint64 {
	return idx.version
}

// Len returns the number of indexed entries.
func (idx *CandidateIndex) Len() int {
	return len(idx.entries)
}

// Search returns up to k candidates ordered by exact cosine distance, ties by position.
func (idx *CandidateIndex) Search(probe []float32, k int) ([]Candidate, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil || k <= 0 {
		return nil, nil
	}
	if len(probe) != idx.dim {
		return nil, &DimensionMismatchError{Label: "probe", Expected: idx.dim, Actual: len(probe)}
	}

	// Request more candidates than needed so the exact re-ranking has room.
	neighbors := idx.graph.Search(probe, min(k*HNSWSearchMultiplier, len(idx.entries)))

	result := make([]Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Key < 0 || n.Key >= len(idx.entries) {
			return nil, fmt.Errorf("hnsw returned unknown key %d", n.Key)
		}
		result = append(result, Candidate{
			Label:    idx.entries[n.Key].Label,
			Distance: CosineDistance(probe, n.Value),
			Position: n.Key,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].Position < result[j].Position
	})
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}
