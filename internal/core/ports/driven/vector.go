package driven

import (
	"context"

	"github.com/meridianhq/ragpipe/internal/core/domain"
)

// VectorIndex stores chunk vectors in one collection per document and
// answers nearest-neighbour queries against a single collection.
//
// Scores exposed to callers are cosine similarities: higher is better,
// bounded in (0, 1] for normalised inputs. Both the qdrant and in-memory
// backends follow this convention.
type VectorIndex interface {
	// EnsureCollection creates the document's collection if it does not
	// exist. Idempotent: calling it for an existing collection is a no-op.
	EnsureCollection(ctx context.Context, documentID string) error

	// Add stores chunk vectors in the document's collection. vectors is
	// index-aligned with chunks. Re-adding a chunk identity overwrites
	// the previous entry rather than duplicating it.
	Add(ctx context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error

	// Query returns up to k nearest chunks, best match first. A missing
	// collection yields an empty result, not an error.
	Query(ctx context.Context, documentID string, vector []float32, k int) ([]VectorHit, error)

	// DropCollection removes all vectors for the document. Dropping a
	// non-existent collection is not an error.
	DropCollection(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk identity "{document_id}_{index}".
	ChunkID string

	// DocumentID is the owning document.
	DocumentID string

	// ChunkIndex is the chunk's position within the document.
	ChunkIndex int

	// Content is the chunk text.
	Content string

	// Similarity is the cosine similarity score (higher is better).
	Similarity float64
}
