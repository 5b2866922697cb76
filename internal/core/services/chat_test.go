package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

func newChatFixture(index *fakeIndex, reranker driven.Reranker, model *fakeChatModel) *ChatService {
	retrieval := NewRetrievalService(&fakeEmbedder{}, index, reranker, quietLogger())
	docs := &fakeDocStore{names: map[string]string{"d1": "report.txt", "d2": "notes.md"}}
	return NewChatService(retrieval, docs, model, ChatConfig{}, quietLogger())
}

func TestHandleTurnEventOrderWithDocuments(t *testing.T) {
	index := newFakeIndex()
	index.hits["d1"] = []driven.VectorHit{hit("d1", 0, "relevant text", 0.9)}
	model := &fakeChatModel{deltas: []driven.StreamDelta{
		{Content: "Hello"},
		{Content: " world"},
	}}
	svc := newChatFixture(index, &fakeReranker{}, model)
	sink := &recordingSink{}

	require.NoError(t, svc.HandleTurn(context.Background(), "question", []string{"d1"}, sink))

	assert.Equal(t, []string{"context", "start", "chunk", "chunk", "end"}, sink.kinds())

	// End text must be byte-identical to the concatenated chunks.
	var chunks strings.Builder
	for _, e := range sink.events {
		if e.kind == "chunk" {
			chunks.WriteString(e.text)
		}
	}
	last := sink.events[len(sink.events)-1]
	assert.Equal(t, chunks.String(), last.text)
	assert.Equal(t, "Hello world", last.text)
}

func TestHandleTurnContextSummaryListsAllSelectedDocuments(t *testing.T) {
	index := newFakeIndex()
	index.hits["d1"] = []driven.VectorHit{hit("d1", 0, "relevant text", 0.9)}
	// d2 has no relevant chunks but must still appear.
	model := &fakeChatModel{deltas: []driven.StreamDelta{{Content: "ok"}}}
	svc := newChatFixture(index, &fakeReranker{}, model)
	sink := &recordingSink{}

	require.NoError(t, svc.HandleTurn(context.Background(), "question", []string{"d1", "d2"}, sink))

	require.Equal(t, "context", sink.events[0].kind)
	summary := sink.events[0].summary
	assert.Equal(t, 2, summary.TotalDocuments)
	assert.Equal(t, 1, summary.TotalRelevantInfo)
	require.Len(t, summary.Documents, 2)
	assert.Equal(t, "report.txt", summary.Documents[0].DocumentName)
	assert.Equal(t, []string{"relevant text"}, summary.Documents[0].RelevantContent)
	assert.Equal(t, "notes.md", summary.Documents[1].DocumentName)
	assert.Empty(t, summary.Documents[1].RelevantContent)
}

func TestHandleTurnNoDocumentsSkipsContext(t *testing.T) {
	model := &fakeChatModel{deltas: []driven.StreamDelta{{Content: "hi"}}}
	svc := newChatFixture(newFakeIndex(), nil, model)
	sink := &recordingSink{}

	require.NoError(t, svc.HandleTurn(context.Background(), "hello", nil, sink))

	assert.Equal(t, []string{"start", "chunk", "end"}, sink.kinds())

	// With no context the prompt is just the user message.
	require.Len(t, model.calls, 1)
	require.Len(t, model.calls[0], 1)
	assert.Equal(t, "user", model.calls[0][0].Role)
	assert.Equal(t, "hello", model.calls[0][0].Content)
}

func TestHandleTurnPromptEmbedsLabeledContext(t *testing.T) {
	index := newFakeIndex()
	index.hits["d1"] = []driven.VectorHit{hit("d1", 0, "the answer is 42", 0.9)}
	model := &fakeChatModel{deltas: []driven.StreamDelta{{Content: "42"}}}
	svc := newChatFixture(index, &fakeReranker{}, model)

	require.NoError(t, svc.HandleTurn(context.Background(), "question", []string{"d1"}, &recordingSink{}))

	require.Len(t, model.calls, 1)
	require.Len(t, model.calls[0], 2)
	system := model.calls[0][0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, `Document "report.txt"`)
	assert.Contains(t, system.Content, "the answer is 42")
	assert.Equal(t, "question", model.calls[0][1].Content)
}

func TestHandleTurnGenerationFailureEmitsErrorEvent(t *testing.T) {
	model := &fakeChatModel{streamErr: errors.New("model unreachable")}
	svc := newChatFixture(newFakeIndex(), nil, model)
	sink := &recordingSink{}

	require.NoError(t, svc.HandleTurn(context.Background(), "hello", nil, sink),
		"turn failures keep the connection alive")
	require.Equal(t, []string{"error"}, sink.kinds())
	assert.Contains(t, sink.events[0].text, "model unreachable")
}

func TestHandleTurnMidStreamFailureEmitsErrorEvent(t *testing.T) {
	model := &fakeChatModel{deltas: []driven.StreamDelta{
		{Content: "partial"},
		{Err: errors.New("stream cut")},
	}}
	svc := newChatFixture(newFakeIndex(), nil, model)
	sink := &recordingSink{}

	require.NoError(t, svc.HandleTurn(context.Background(), "hello", nil, sink))
	assert.Equal(t, []string{"start", "chunk", "error"}, sink.kinds())
}

func TestHandleTurnRerankFailureStillAnswers(t *testing.T) {
	index := newFakeIndex()
	index.hits["d1"] = []driven.VectorHit{hit("d1", 0, "text", 0.9)}
	model := &fakeChatModel{deltas: []driven.StreamDelta{{Content: "ok"}}}
	svc := newChatFixture(index, &fakeReranker{err: errors.New("rerank down")}, model)
	sink := &recordingSink{}

	require.NoError(t, svc.HandleTurn(context.Background(), "question", []string{"d1"}, sink))
	assert.Equal(t, []string{"context", "start", "chunk", "end"}, sink.kinds())
}

func TestHandleTurnCancelledContextReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &fakeChatModel{streamErr: context.Canceled}
	svc := newChatFixture(newFakeIndex(), nil, model)
	sink := &recordingSink{}

	err := svc.HandleTurn(ctx, "hello", nil, sink)
	require.Error(t, err, "cancellation terminates the session, not the turn")
	assert.NotContains(t, sink.kinds(), "error", "no error event on transport cancellation")
}

func TestHandleTurnSinkFailurePropagates(t *testing.T) {
	model := &fakeChatModel{deltas: []driven.StreamDelta{{Content: "hi"}}}
	svc := newChatFixture(newFakeIndex(), nil, model)
	sink := &recordingSink{failOn: "chunk", failErr: errors.New("connection closed")}

	err := svc.HandleTurn(context.Background(), "hello", nil, sink)
	require.Error(t, err)
}
