package domain

import (
	"fmt"
	"time"
)

// Document represents an uploaded document tracked in the metadata store.
// The document text itself lives in the file store; the vector collection
// holding its chunks is keyed by the document ID.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// StoredName is the name of the blob in the file store.
	StoredName string

	// DisplayName is the original filename shown to users.
	DisplayName string

	// UploadedAt is when the document was ingested.
	UploadedAt time.Time
}

// Chunk is a contiguous span of document text, the atomic retrieval unit.
// Chunks are immutable once produced by segmentation.
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the zero-based position within the document.
	Index int

	// Content is the text of this chunk.
	Content string
}

// ChunkID returns the stable chunk identity "{document_id}_{index}".
// Re-adding a chunk with the same identity overwrites the stored entry.
func (c Chunk) ChunkID() string {
	return fmt.Sprintf("%s_%d", c.DocumentID, c.Index)
}

// Candidate is a scored chunk returned during retrieval. It exists only
// within one query's lifetime and is never persisted.
type Candidate struct {
	// DocumentID is the source document.
	DocumentID string

	// ChunkID is the identity of the matched chunk.
	ChunkID string

	// Content is the chunk text.
	Content string

	// Score is the coarse similarity from the vector index (higher is better).
	Score float64

	// RerankScore is the cross-encoder relevance score. Only meaningful
	// when Reranked is true.
	RerankScore float64

	// Reranked reports whether RerankScore was populated.
	Reranked bool
}
