package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/ragpipe/internal/core/domain"
)

func chunk(docID string, index int, content string) domain.Chunk {
	return domain.Chunk{DocumentID: docID, Index: index, Content: content}
}

func TestQueryMissingCollectionReturnsEmpty(t *testing.T) {
	ix := New()

	hits, err := ix.Query(context.Background(), "nope", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestAddAndQueryOrdering(t *testing.T) {
	ix := New()
	ctx := context.Background()

	chunks := []domain.Chunk{
		chunk("doc1", 0, "east"),
		chunk("doc1", 1, "north"),
		chunk("doc1", 2, "north-east"),
	}
	vectors := [][]float32{
		{1, 0},
		{0, 1},
		{1, 1},
	}
	require.NoError(t, ix.EnsureCollection(ctx, "doc1"))
	require.NoError(t, ix.Add(ctx, "doc1", chunks, vectors))

	hits, err := ix.Query(ctx, "doc1", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// Best match first, similarity descending.
	assert.Equal(t, "doc1_0", hits[0].ChunkID)
	assert.Equal(t, "doc1_2", hits[1].ChunkID)
	assert.Equal(t, "doc1_1", hits[2].ChunkID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
	assert.Greater(t, hits[1].Similarity, hits[2].Similarity)
	assert.Equal(t, "east", hits[0].Content)
	assert.Equal(t, "doc1", hits[0].DocumentID)
}

func TestQueryClampsToCollectionSize(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "doc1",
		[]domain.Chunk{chunk("doc1", 0, "only")},
		[][]float32{{1, 0}}))

	hits, err := ix.Query(ctx, "doc1", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestAddOverwritesSameChunkIdentity(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "doc1",
		[]domain.Chunk{chunk("doc1", 0, "old text")},
		[][]float32{{1, 0}}))
	require.NoError(t, ix.Add(ctx, "doc1",
		[]domain.Chunk{chunk("doc1", 0, "new text")},
		[][]float32{{0, 1}}))

	hits, err := ix.Query(ctx, "doc1", []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1, "re-adding the same identity must overwrite, not duplicate")
	assert.Equal(t, "new text", hits[0].Content)
}

func TestAddRejectsMixedDimensions(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "doc1",
		[]domain.Chunk{chunk("doc1", 0, "a")},
		[][]float32{{1, 0, 0}}))

	err := ix.Add(ctx, "doc1",
		[]domain.Chunk{chunk("doc1", 1, "b")},
		[][]float32{{1, 0}})
	require.Error(t, err)
}

func TestAddRejectsLengthMismatch(t *testing.T) {
	ix := New()

	err := ix.Add(context.Background(), "doc1",
		[]domain.Chunk{chunk("doc1", 0, "a"), chunk("doc1", 1, "b")},
		[][]float32{{1, 0}})
	require.Error(t, err)
}

func TestDropCollectionIsIdempotent(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "doc1",
		[]domain.Chunk{chunk("doc1", 0, "a")},
		[][]float32{{1, 0}}))

	require.NoError(t, ix.DropCollection(ctx, "doc1"))
	require.NoError(t, ix.DropCollection(ctx, "doc1"), "dropping a missing collection is not an error")

	hits, err := ix.Query(ctx, "doc1", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestEnsureCollectionIsIdempotent(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.EnsureCollection(ctx, "doc1"))
	require.NoError(t, ix.Add(ctx, "doc1",
		[]domain.Chunk{chunk("doc1", 0, "a")},
		[][]float32{{1, 0}}))
	require.NoError(t, ix.EnsureCollection(ctx, "doc1"))

	hits, err := ix.Query(ctx, "doc1", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "ensure on an existing collection must not clear it")
}
