// Package cohere provides a reranker using the Cohere-compatible
// /rerank API, also exposed by Jina and by self-hosted cross-encoder
// gateways.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultModel   = "rerank-v3.5"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the rerank service.
type Config struct {
	// BaseURL is the API base URL (required).
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Model is the rerank model to use (default: rerank-v3.5).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Reranker scores (query, text) pairs via the /rerank endpoint.
type Reranker struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// rerankRequest is the API request format.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

// rerankResponse is the API response format.
type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// New creates a new reranker.
func New(cfg Config) (*Reranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank: base URL is required: %w", domain.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Reranker{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Score returns one relevance score per text, index-aligned with the
// input. Failures and responses that omit or duplicate indices wrap
// domain.ErrRerankUnavailable so callers fall back to coarse ordering.
func (r *Reranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	jsonBody, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: texts,
		TopN:      len(texts), // scores for every candidate
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.baseURL+"/rerank",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w: %w", domain.ErrRerankUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", domain.ErrRerankUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank status %d: %s: %w", resp.StatusCode, string(body), domain.ErrRerankUnavailable)
	}

	var rerankResp rerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("decode response: %w: %w", domain.ErrRerankUnavailable, err)
	}
	if len(rerankResp.Results) != len(texts) {
		return nil, fmt.Errorf("rerank returned %d scores for %d texts: %w",
			len(rerankResp.Results), len(texts), domain.ErrRerankUnavailable)
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, result := range rerankResp.Results {
		if result.Index < 0 || result.Index >= len(texts) || seen[result.Index] {
			return nil, fmt.Errorf("rerank returned invalid index %d: %w", result.Index, domain.ErrRerankUnavailable)
		}
		seen[result.Index] = true
		scores[result.Index] = result.RelevanceScore
	}
	return scores, nil
}

// ModelName returns the name of the rerank model being used.
func (r *Reranker) ModelName() string {
	return r.model
}

// Close releases resources.
func (r *Reranker) Close() error {
	return nil
}
