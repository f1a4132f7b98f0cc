package database

// Listing limits for audit and permission queries
const (
	// DefaultPageLimit is used when a caller does not ask for a page size
	DefaultPageLimit = 100

	// MaxPageLimit caps a single page of audit records
	MaxPageLimit = 1000
)

// HNSW index parameters for 128-dim face encodings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWCandidates is the number of nearest identities pulled from the index
	// before exact re-scoring.
	HNSWCandidates = 32
)
