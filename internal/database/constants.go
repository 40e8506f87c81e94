package database

// HNSW index parameters for 30-dim pose vectors
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Target sets are small, so a low M keeps the graph compact.
	HNSWMaxNeighbors = 8

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 64

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// to make up for people deleted from the index.
	HNSWSearchMultiplier = 3
)
