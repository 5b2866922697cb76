package driving

import (
	"context"

	"github.com/meridianhq/ragpipe/internal/core/domain"
)

// TurnSink receives the ordered event stream for one conversation turn.
// The transport adapter implements it by serialising events onto the
// connection. Event order is fixed: an optional Context event, then
// Start, zero or more Chunk events, then End. Error replaces the rest of
// the sequence when the turn fails.
type TurnSink interface {
	// Context reports which chunks ground the answer, per selected
	// document. Emitted before any model output, and only when documents
	// were selected for the turn.
	Context(summary domain.ContextSummary) error

	// Start signals that model output follows.
	Start() error

	// Chunk delivers one fragment of the response, in generation order.
	Chunk(text string) error

	// End closes the turn with the full concatenated response text.
	End(fullText string) error

	// Error reports a fatal turn error. The connection stays open.
	Error(message string) error
}

// ChatSession drives conversation turns for one connection. Turns within
// a session are strictly sequential; the session keeps no cross-turn
// memory.
type ChatSession interface {
	// HandleTurn processes one user message against the selected
	// documents, emitting events to sink. A returned error means the
	// transport context was cancelled (disconnect); per-turn failures are
	// reported through sink.Error and return nil.
	HandleTurn(ctx context.Context, message string, documentIDs []string, sink TurnSink) error
}
