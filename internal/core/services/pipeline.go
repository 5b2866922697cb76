package services

import (
	"context"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driving"
)

// Ensure PipelineService implements the interface.
var _ driving.Pipeline = (*PipelineService)(nil)

// PipelineService bundles the ingestion and query paths behind the
// driving Pipeline port.
type PipelineService struct {
	ingest    *IngestService
	retrieval *RetrievalService
}

// NewPipelineService creates a new pipeline service.
func NewPipelineService(ingest *IngestService, retrieval *RetrievalService) *PipelineService {
	return &PipelineService{ingest: ingest, retrieval: retrieval}
}

// Ingest segments, embeds and indexes the document text.
func (p *PipelineService) Ingest(ctx context.Context, documentID, text string) error {
	return p.ingest.Ingest(ctx, documentID, text)
}

// Purge drops the document's vector collection.
func (p *PipelineService) Purge(ctx context.Context, documentID string) error {
	return p.ingest.Purge(ctx, documentID)
}

// Search retrieves and reranks candidates from a single document.
func (p *PipelineService) Search(ctx context.Context, documentID, query string, topK int) ([]domain.Candidate, error) {
	return p.retrieval.Search(ctx, documentID, query, topK)
}
