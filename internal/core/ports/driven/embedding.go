package driven

import "context"

// EmbeddingProvider converts texts into fixed-dimension vectors.
//
// Implementations are raw provider transports (OpenAI-compatible APIs,
// Ollama, local inference servers). Batching, bounded concurrency and
// retry live in the embedding client that wraps this port, so a provider
// only has to turn one batch of texts into one batch of vectors.
//
// Errors wrapping domain.ErrProviderPermanent must not be retried;
// everything else (timeouts, 5xx) is considered transient.
type EmbeddingProvider interface {
	// EmbedBatch generates one embedding per input text, index-aligned
	// with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// All vectors within a collection must share this dimension.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the provider is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
