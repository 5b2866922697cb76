package services

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeSplitter struct {
	chunks []string
}

func (f *fakeSplitter) Split(string) []string { return f.chunks }

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

type addCall struct {
	documentID string
	chunks     []domain.Chunk
	vectors    [][]float32
}

type fakeIndex struct {
	ensured []string
	added   []addCall
	dropped []string

	hits     map[string][]driven.VectorHit
	queryErr map[string]error
	queries  []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		hits:     make(map[string][]driven.VectorHit),
		queryErr: make(map[string]error),
	}
}

func (f *fakeIndex) EnsureCollection(_ context.Context, documentID string) error {
	f.ensured = append(f.ensured, documentID)
	return nil
}

func (f *fakeIndex) Add(_ context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	f.added = append(f.added, addCall{documentID: documentID, chunks: chunks, vectors: vectors})
	return nil
}

func (f *fakeIndex) Query(_ context.Context, documentID string, _ []float32, k int) ([]driven.VectorHit, error) {
	f.queries = append(f.queries, documentID)
	if err := f.queryErr[documentID]; err != nil {
		return nil, err
	}
	hits := f.hits[documentID]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeIndex) DropCollection(_ context.Context, documentID string) error {
	f.dropped = append(f.dropped, documentID)
	return nil
}

func (f *fakeIndex) Close() error { return nil }

type fakeReranker struct {
	calls  int
	scores []float64
	err    error
}

func (f *fakeReranker) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores, nil
	}
	scores := make([]float64, len(texts))
	for i := range texts {
		scores[i] = float64(i)
	}
	return scores, nil
}

func (f *fakeReranker) ModelName() string { return "fake-rerank" }
func (f *fakeReranker) Close() error      { return nil }

type fakeDocStore struct {
	names map[string]string
}

func (f *fakeDocStore) Create(context.Context, domain.Document) error { return nil }
func (f *fakeDocStore) List(context.Context) ([]domain.Document, error) {
	return nil, nil
}

func (f *fakeDocStore) Get(_ context.Context, id string) (*domain.Document, error) {
	name, ok := f.names[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return &domain.Document{ID: id, DisplayName: name}, nil
}

func (f *fakeDocStore) ExistsDisplayName(context.Context, string) (bool, error) {
	return false, nil
}
func (f *fakeDocStore) Delete(context.Context, string) error { return nil }
func (f *fakeDocStore) Close() error                         { return nil }

type fakeChatModel struct {
	deltas    []driven.StreamDelta
	streamErr error
	calls     []([]driven.ChatMessage)
}

func (f *fakeChatModel) Stream(ctx context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (<-chan driven.StreamDelta, error) {
	f.calls = append(f.calls, messages)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	out := make(chan driven.StreamDelta)
	go func() {
		defer close(out)
		for _, d := range f.deltas {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeChatModel) ModelName() string { return "fake-chat" }
func (f *fakeChatModel) Close() error      { return nil }

type sinkEvent struct {
	kind    string
	text    string
	summary domain.ContextSummary
}

type recordingSink struct {
	events  []sinkEvent
	failOn  string
	failErr error
}

func (r *recordingSink) record(kind, text string, summary domain.ContextSummary) error {
	if r.failOn == kind {
		return r.failErr
	}
	r.events = append(r.events, sinkEvent{kind: kind, text: text, summary: summary})
	return nil
}

func (r *recordingSink) Context(summary domain.ContextSummary) error {
	return r.record("context", "", summary)
}
func (r *recordingSink) Start() error              { return r.record("start", "", domain.ContextSummary{}) }
func (r *recordingSink) Chunk(text string) error   { return r.record("chunk", text, domain.ContextSummary{}) }
func (r *recordingSink) End(fullText string) error { return r.record("end", fullText, domain.ContextSummary{}) }
func (r *recordingSink) Error(message string) error {
	return r.record("error", message, domain.ContextSummary{})
}

func (r *recordingSink) kinds() []string {
	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.kind
	}
	return kinds
}
