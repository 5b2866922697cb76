// Package qdrant provides a vector index backed by a Qdrant server over
// its REST API, with one Qdrant collection per document. No SDK is used;
// the handful of endpoints involved are called directly.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultBaseURL          = "http://localhost:6333"
	DefaultTimeout          = 15 * time.Second
	DefaultCollectionPrefix = "doc_"
)

// pointNamespace is the UUIDv5 namespace for deriving point IDs from
// chunk identities. Deterministic IDs give Add overwrite semantics:
// upserting the same chunk identity replaces the stored point.
var pointNamespace = uuid.MustParse("1d1cbad1-63b7-4711-8d09-1b6c0f2ad35b")

// Config holds configuration for the Qdrant index.
type Config struct {
	// BaseURL is the Qdrant REST endpoint (default: http://localhost:6333).
	BaseURL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// CollectionPrefix prefixes document IDs to form collection names
	// (default: "doc_").
	CollectionPrefix string

	// Dimensions is the embedding vector size used when creating
	// collections (required).
	Dimensions int

	// Timeout is the request timeout (default: 15s).
	Timeout time.Duration
}

// Index stores chunk vectors in Qdrant, one collection per document,
// using cosine distance. Qdrant's search API returns cosine similarity
// scores directly, so no conversion is needed to satisfy the
// higher-is-better convention of the port.
type Index struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	prefix     string
	dimensions int
}

// New creates a new Qdrant index.
func New(cfg Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("qdrant: vector dimensions are required: %w", domain.ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = DefaultCollectionPrefix
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		prefix:     cfg.CollectionPrefix,
		dimensions: cfg.Dimensions,
	}, nil
}

func (ix *Index) collectionName(documentID string) string {
	return ix.prefix + documentID
}

// EnsureCollection creates the document's collection if it does not
// exist yet.
func (ix *Index) EnsureCollection(ctx context.Context, documentID string) error {
	name := ix.collectionName(documentID)

	status, _, err := ix.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("check collection %s: unexpected status %d", name, status)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     ix.dimensions,
			"distance": "Cosine",
		},
	}
	status, respBody, err := ix.do(ctx, http.MethodPut, "/collections/"+name, body)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	// A concurrent creator may have won the race; Qdrant answers 409.
	if status != http.StatusOK && status != http.StatusConflict {
		return fmt.Errorf("create collection %s: status %d: %s", name, status, respBody)
	}
	return nil
}

// Add upserts chunk vectors into the document's collection. Point IDs are
// derived from the chunk identity, so re-adding overwrites.
func (ix *Index) Add(ctx context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != ix.dimensions {
			return fmt.Errorf("vector for chunk %s has dimension %d, collection uses %d",
				chunk.ChunkID(), len(vectors[i]), ix.dimensions)
		}
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(pointNamespace, []byte(chunk.ChunkID())).String(),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": chunk.DocumentID,
				"chunk_index": chunk.Index,
				"text":        chunk.Content,
			},
		}
	}

	name := ix.collectionName(documentID)
	status, respBody, err := ix.do(ctx, http.MethodPut,
		"/collections/"+name+"/points?wait=true",
		map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("upsert points into %s: %w", name, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("upsert points into %s: status %d: %s", name, status, respBody)
	}
	return nil
}

// searchResponse is the Qdrant search response format.
type searchResponse struct {
	Result []struct {
		Score   float64 `json:"score"`
		Payload struct {
			DocumentID string `json:"document_id"`
			ChunkIndex int    `json:"chunk_index"`
			Text       string `json:"text"`
		} `json:"payload"`
	} `json:"result"`
}

// Query returns up to k nearest chunks, best first. A missing collection
// yields an empty result.
func (ix *Index) Query(ctx context.Context, documentID string, vector []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	name := ix.collectionName(documentID)
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	status, respBody, err := ix.do(ctx, http.MethodPost, "/collections/"+name+"/points/search", body)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", name, err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search %s: status %d: %s", name, status, respBody)
	}

	var resp searchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := domain.Chunk{DocumentID: r.Payload.DocumentID, Index: r.Payload.ChunkIndex}
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunk.ChunkID(),
			DocumentID: r.Payload.DocumentID,
			ChunkIndex: r.Payload.ChunkIndex,
			Content:    r.Payload.Text,
			Similarity: r.Score,
		})
	}
	return hits, nil
}

// DropCollection deletes the document's collection. Unknown collections
// are ignored.
func (ix *Index) DropCollection(ctx context.Context, documentID string) error {
	name := ix.collectionName(documentID)
	status, respBody, err := ix.do(ctx, http.MethodDelete, "/collections/"+name, nil)
	if err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("drop collection %s: status %d: %s", name, status, respBody)
	}
	return nil
}

// Close releases resources.
func (ix *Index) Close() error {
	return nil
}

// do performs one JSON request and returns the status code and body.
func (ix *Index) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, ix.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ix.apiKey != "" {
		req.Header.Set("api-key", ix.apiKey)
	}

	resp, err := ix.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
