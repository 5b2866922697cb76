package driven

import "context"

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures generation behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate (0 = provider default).
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// StreamDelta is one incrementally available fragment of a model response.
// A delta with a non-nil Err terminates the stream; Content is empty in
// that case.
type StreamDelta struct {
	Content string
	Err     error
}

// ChatModel produces streamed completions. The returned channel yields
// fragments in generation order and is closed when generation finishes,
// the stream breaks, or ctx is cancelled. The stream is finite and
// non-restartable: once consumed it cannot be replayed.
type ChatModel interface {
	// Stream starts a completion for the given messages.
	Stream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (<-chan StreamDelta, error)

	// ModelName returns the name of the chat model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
