// Package memory provides an in-process vector index with one collection
// per document. It backs tests and single-node deployments that do not
// want an external vector database.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index stores chunk vectors in per-document collections and answers
// exact cosine-similarity queries. Collections are independent: queries
// against different documents do not contend, while writes to the same
// collection are serialised by its own lock.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	mu         sync.RWMutex
	dimensions int
	points     map[string]point // keyed by chunk identity
}

type point struct {
	chunk  domain.Chunk
	vector []float32
}

// New creates an empty index.
func New() *Index {
	return &Index{collections: make(map[string]*collection)}
}

// EnsureCollection creates the document's collection if missing.
func (ix *Index) EnsureCollection(_ context.Context, documentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.collections[documentID]; !ok {
		ix.collections[documentID] = &collection{points: make(map[string]point)}
	}
	return nil
}

// Add stores chunk vectors, overwriting entries with the same chunk
// identity. All vectors in a collection must share one dimension.
func (ix *Index) Add(_ context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	ix.mu.Lock()
	coll, ok := ix.collections[documentID]
	if !ok {
		coll = &collection{points: make(map[string]point)}
		ix.collections[documentID] = coll
	}
	ix.mu.Unlock()

	coll.mu.Lock()
	defer coll.mu.Unlock()

	for i, chunk := range chunks {
		vec := vectors[i]
		if coll.dimensions == 0 {
			coll.dimensions = len(vec)
		} else if len(vec) != coll.dimensions {
			return fmt.Errorf("vector for chunk %s has dimension %d, collection holds %d",
				chunk.ChunkID(), len(vec), coll.dimensions)
		}
		coll.points[chunk.ChunkID()] = point{chunk: chunk, vector: vec}
	}
	return nil
}

// Query returns up to k nearest chunks by cosine similarity, best first.
// A missing collection yields an empty result.
func (ix *Index) Query(_ context.Context, documentID string, vector []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	coll, ok := ix.collections[documentID]
	ix.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	coll.mu.RLock()
	hits := make([]driven.VectorHit, 0, len(coll.points))
	for _, pt := range coll.points {
		hits = append(hits, driven.VectorHit{
			ChunkID:    pt.chunk.ChunkID(),
			DocumentID: pt.chunk.DocumentID,
			ChunkIndex: pt.chunk.Index,
			Content:    pt.chunk.Content,
			Similarity: cosine(vector, pt.vector),
		})
	}
	coll.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		// Stable tiebreak for deterministic results.
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DropCollection removes the document's collection. Idempotent.
func (ix *Index) DropCollection(_ context.Context, documentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.collections, documentID)
	return nil
}

// Close releases resources.
func (ix *Index) Close() error {
	return nil
}

// cosine computes the cosine similarity of two vectors. Mismatched or
// zero-norm vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
