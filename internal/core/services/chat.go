package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
	"github.com/meridianhq/ragpipe/internal/core/ports/driving"
)

// Ensure ChatService implements the interface.
var _ driving.ChatSession = (*ChatService)(nil)

const systemPrompt = "You are a helpful assistant that answers questions about the user's documents. " +
	"Base your answer on the document excerpts provided below. " +
	"If the excerpts do not contain the answer, say so instead of guessing.\n\n"

// ChatConfig holds configuration for chat turn processing.
type ChatConfig struct {
	// RetrieveTopK is how many chunks to pull per selected document
	// (default: 10).
	RetrieveTopK int

	// AnswerTopK is how many reranked chunks make it into the context
	// block (default: 5).
	AnswerTopK int

	// MaxTokens caps the model response length. Zero means provider
	// default.
	MaxTokens int

	// Temperature is the sampling temperature. Zero means provider
	// default.
	Temperature float64
}

// ChatService runs conversation turns: retrieve, rerank, assemble the
// grounding context, then stream the model response as ordered events.
// The service is stateless across turns; a connection gets sequential
// turns simply by calling HandleTurn one at a time.
type ChatService struct {
	retrieval *RetrievalService
	docs      driven.DocumentStore
	model     driven.ChatModel
	log       *logrus.Logger
	cfg       ChatConfig
}

// NewChatService creates a new chat service.
func NewChatService(retrieval *RetrievalService, docs driven.DocumentStore, model driven.ChatModel, cfg ChatConfig, log *logrus.Logger) *ChatService {
	if cfg.RetrieveTopK <= 0 {
		cfg.RetrieveTopK = DefaultRetrieveTopK
	}
	if cfg.AnswerTopK <= 0 {
		cfg.AnswerTopK = DefaultAnswerTopK
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ChatService{
		retrieval: retrieval,
		docs:      docs,
		model:     model,
		log:       log,
		cfg:       cfg,
	}
}

// HandleTurn processes one user message. Event order on the sink is:
// Context (only when documents are selected), Start, Chunk*, End — with
// End carrying text byte-identical to the concatenated chunks. Per-turn
// failures become a sink Error event and return nil; only transport
// failures (sink errors, context cancellation) propagate as a returned
// error.
func (s *ChatService) HandleTurn(ctx context.Context, message string, documentIDs []string, sink driving.TurnSink) error {
	var contextBlock string

	if len(documentIDs) > 0 {
		candidates, err := s.retrieval.Retrieve(ctx, message, documentIDs, s.cfg.RetrieveTopK)
		if err != nil {
			return s.failTurn(ctx, sink, fmt.Errorf("retrieve context: %w", err))
		}
		ranked := s.retrieval.Rerank(ctx, message, candidates, s.cfg.AnswerTopK)

		summary := s.buildSummary(ctx, documentIDs, ranked)
		if err := sink.Context(summary); err != nil {
			return fmt.Errorf("emit context event: %w", err)
		}
		contextBlock = formatContext(summary)
	}

	deltas, err := s.model.Stream(ctx, s.buildPrompt(contextBlock, message), driven.ChatOptions{
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return s.failTurn(ctx, sink, fmt.Errorf("start generation: %w", err))
	}

	if err := sink.Start(); err != nil {
		return fmt.Errorf("emit start event: %w", err)
	}

	var full strings.Builder
	for delta := range deltas {
		if delta.Err != nil {
			return s.failTurn(ctx, sink, fmt.Errorf("stream response: %w", delta.Err))
		}
		if err := sink.Chunk(delta.Content); err != nil {
			return fmt.Errorf("emit chunk event: %w", err)
		}
		full.WriteString(delta.Content)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := sink.End(full.String()); err != nil {
		return fmt.Errorf("emit end event: %w", err)
	}
	return nil
}

// failTurn converts a turn failure into an error event, keeping the
// connection alive. Cancellation is not a turn failure: it terminates
// the session instead.
func (s *ChatService) failTurn(ctx context.Context, sink driving.TurnSink, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.log.WithError(err).Warn("chat turn failed")
	if sinkErr := sink.Error(err.Error()); sinkErr != nil {
		return fmt.Errorf("emit error event: %w", sinkErr)
	}
	return nil
}

// buildSummary groups the ranked candidates by selected document. Every
// selected document appears, even with no relevant content.
func (s *ChatService) buildSummary(ctx context.Context, documentIDs []string, ranked []domain.Candidate) domain.ContextSummary {
	byDocument := make(map[string][]string, len(documentIDs))
	for _, c := range ranked {
		byDocument[c.DocumentID] = append(byDocument[c.DocumentID], c.Content)
	}

	summary := domain.ContextSummary{
		TotalDocuments:    len(documentIDs),
		TotalRelevantInfo: len(ranked),
	}
	for _, id := range documentIDs {
		summary.Documents = append(summary.Documents, domain.DocumentContext{
			DocumentID:      id,
			DocumentName:    s.documentName(ctx, id),
			RelevantContent: byDocument[id],
		})
	}
	return summary
}

// documentName resolves the display name for a document, falling back to
// the raw ID when metadata is unavailable.
func (s *ChatService) documentName(ctx context.Context, id string) string {
	if s.docs == nil {
		return id
	}
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("document_id", id).Debug("document name lookup failed")
		return id
	}
	return doc.DisplayName
}

// formatContext renders the source-labeled context block embedded in the
// system prompt. Documents without relevant content are omitted.
func formatContext(summary domain.ContextSummary) string {
	var sb strings.Builder
	for _, doc := range summary.Documents {
		if len(doc.RelevantContent) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "Document %q:\n", doc.DocumentName)
		for _, content := range doc.RelevantContent {
			sb.WriteString("- ")
			sb.WriteString(content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// buildPrompt assembles the message list for one turn. No prior turns
// are retained.
func (s *ChatService) buildPrompt(contextBlock, message string) []driven.ChatMessage {
	if contextBlock == "" {
		return []driven.ChatMessage{{Role: "user", Content: message}}
	}
	return []driven.ChatMessage{
		{Role: "system", Content: systemPrompt + contextBlock},
		{Role: "user", Content: message},
	}
}
