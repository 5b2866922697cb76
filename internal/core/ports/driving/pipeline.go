package driving

import (
	"context"

	"github.com/meridianhq/ragpipe/internal/core/domain"
)

// Pipeline exposes the ingestion and retrieval paths to the transport
// layer. The transport owns file storage and metadata bookkeeping; the
// pipeline only ever sees raw text and document IDs.
type Pipeline interface {
	// Ingest segments the text, embeds the chunks and writes them to the
	// document's vector collection. The collection is created lazily on
	// the first chunk write; text that yields no chunks creates nothing.
	Ingest(ctx context.Context, documentID, text string) error

	// Purge drops the document's vector collection. Idempotent.
	Purge(ctx context.Context, documentID string) error

	// Search retrieves and reranks candidates from a single document.
	// An unknown document yields an empty result, not an error.
	Search(ctx context.Context, documentID, query string, topK int) ([]domain.Candidate, error)
}
