package driven

import "context"

// Reranker rescores (query, text) pairs with a cross-encoder-style
// relevance signal, stronger than the bi-encoder similarity used for
// recall. Local models and remote scoring services are interchangeable
// behind this port.
//
// Reranking is best-effort: callers treat any error as a degraded-service
// condition and fall back to coarse-score ordering.
type Reranker interface {
	// Score returns one relevance score per text, index-aligned with the
	// input. A result of the wrong length is a protocol violation and
	// must be reported as an error, never silently truncated.
	Score(ctx context.Context, query string, texts []string) ([]float64, error)

	// ModelName returns the name of the rerank model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
