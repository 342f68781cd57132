package driven

import "context"

// VectorIndex provides semantic similarity search over stored vectors.
// Vectors are keyed by an explicit record ID rather than insertion position,
// so a search hit resolves to its metadata row without any positional
// coupling between index and store.
type VectorIndex interface {
	// Add inserts a vector for the given record ID.
	Add(ctx context.Context, recordID string, embedding []float32) error

	// Search finds the k nearest neighbours to the query vector, ranked by
	// descending similarity.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Len returns the number of stored vectors.
	Len() int

	// Close persists pending state and releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// RecordID is the matched record.
	RecordID string

	// Similarity is the cosine similarity score, higher is closer.
	Similarity float64
}
