package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

// Default retrieval depths: how many chunks to pull per document, and how
// many survive reranking into the final answer context.
const (
	DefaultRetrieveTopK = 10
	DefaultAnswerTopK   = 5
)

// RetrievalService answers queries by fanning out over document
// collections and reranking the merged candidates. The reranker is
// optional: without one, or when it fails, candidates are ordered by
// their coarse similarity score.
type RetrievalService struct {
	embedder Embedder
	index    driven.VectorIndex
	reranker driven.Reranker
	log      *logrus.Logger
}

// NewRetrievalService creates a new retrieval service. reranker may be
// nil to disable reranking entirely.
func NewRetrievalService(embedder Embedder, index driven.VectorIndex, reranker driven.Reranker, log *logrus.Logger) *RetrievalService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		log:      log,
	}
}

// Retrieve embeds the query once and collects up to topK candidates from
// each document's collection. A failing document is logged and skipped;
// it never aborts retrieval for the others. The result is the unsorted
// concatenation across documents.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, documentIDs []string, topK int) ([]domain.Candidate, error) {
	if len(documentIDs) == 0 || topK <= 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVector := vectors[0]

	var candidates []domain.Candidate
	for _, documentID := range documentIDs {
		hits, err := s.index.Query(ctx, documentID, queryVector, topK)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.WithError(err).WithField("document_id", documentID).
				Warn("document retrieval failed, dropping its contribution")
			continue
		}
		for _, hit := range hits {
			candidates = append(candidates, domain.Candidate{
				DocumentID: documentID,
				ChunkID:    hit.ChunkID,
				Content:    hit.Content,
				Score:      hit.Similarity,
			})
		}
	}
	return candidates, nil
}

// Rerank rescores candidates against the query and returns the best topK
// in descending relevance. When the reranker is missing, fails, or
// returns a malformed result, it degrades to coarse-score ordering with a
// warning; a query never fails because reranking is down.
func (s *RetrievalService) Rerank(ctx context.Context, query string, candidates []domain.Candidate, topK int) []domain.Candidate {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}

	if s.reranker == nil {
		return coarseTopK(candidates, topK)
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}

	scores, err := s.reranker.Score(ctx, query, texts)
	if err != nil {
		s.log.WithError(err).Warn("reranking unavailable, falling back to similarity order")
		return coarseTopK(candidates, topK)
	}
	if len(scores) != len(candidates) {
		s.log.WithFields(logrus.Fields{
			"scores":     len(scores),
			"candidates": len(candidates),
		}).Warn("reranker returned malformed result, falling back to similarity order")
		return coarseTopK(candidates, topK)
	}

	ranked := make([]domain.Candidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].RerankScore = scores[i]
		ranked[i].Reranked = true
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// Search runs the full query path over a single document.
func (s *RetrievalService) Search(ctx context.Context, documentID, query string, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = DefaultAnswerTopK
	}
	candidates, err := s.Retrieve(ctx, query, []string{documentID}, topK)
	if err != nil {
		return nil, err
	}
	return s.Rerank(ctx, query, candidates, topK), nil
}

// coarseTopK orders candidates by their original similarity score.
func coarseTopK(candidates []domain.Candidate, topK int) []domain.Candidate {
	ranked := make([]domain.Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}
