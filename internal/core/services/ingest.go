// Package services implements the core pipeline behind the driving
// ports: ingestion, retrieval with reranking, and chat turn
// orchestration. Services depend only on the driven ports and carry no
// transport concerns.
package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

// Splitter segments document text into chunks.
type Splitter interface {
	Split(text string) []string
}

// Embedder turns texts into vectors, index-aligned with the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestService writes a document's chunk vectors into the vector index.
type IngestService struct {
	splitter Splitter
	embedder Embedder
	index    driven.VectorIndex
	log      *logrus.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(splitter Splitter, embedder Embedder, index driven.VectorIndex, log *logrus.Logger) *IngestService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &IngestService{
		splitter: splitter,
		embedder: embedder,
		index:    index,
		log:      log,
	}
}

// Ingest segments the text, embeds the chunks and upserts them into the
// document's collection. Text that yields no chunks creates nothing, so
// a later query against the document simply finds no collection.
func (s *IngestService) Ingest(ctx context.Context, documentID, text string) error {
	texts := s.splitter.Split(text)
	if len(texts) == 0 {
		s.log.WithField("document_id", documentID).Debug("no chunks produced, skipping ingestion")
		return nil
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, content := range texts {
		chunks[i] = domain.Chunk{DocumentID: documentID, Index: i, Content: content}
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(texts), err)
	}

	if err := s.index.EnsureCollection(ctx, documentID); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	if err := s.index.Add(ctx, documentID, chunks, vectors); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"document_id": documentID,
		"chunks":      len(chunks),
	}).Info("document ingested")
	return nil
}

// Purge drops the document's vector collection. Idempotent.
func (s *IngestService) Purge(ctx context.Context, documentID string) error {
	if err := s.index.DropCollection(ctx, documentID); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}
