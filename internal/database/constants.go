package database

// HNSW parameters for the diagnostics candidate index
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// than the caller asked for, before exact re-ranking.
	HNSWSearchMultiplier = 3
)

// File store format
const (
	// storeFormatVersion is written into every persisted store artifact.
	storeFormatVersion = 1
)
