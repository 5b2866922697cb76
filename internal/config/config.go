// Package config loads the service configuration from a TOML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/meridianhq/ragpipe/internal/core/domain"
)

// Default configuration values.
const (
	DefaultListenAddr  = ":8080"
	DefaultDataDir     = "./data"
	DefaultVectorStore = "qdrant"
)

// Config is the top-level service configuration.
type Config struct {
	Server    Server    `toml:"server"`
	Storage   Storage   `toml:"storage"`
	Segmenter Segmenter `toml:"segmenter"`
	Embedding Embedding `toml:"embedding"`
	Vector    Vector    `toml:"vector"`
	Rerank    Rerank    `toml:"rerank"`
	Chat      Chat      `toml:"chat"`
}

// Server holds HTTP server settings.
type Server struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `toml:"listen_addr"`
}

// Storage holds metadata and blob storage settings.
type Storage struct {
	// DataDir is the directory holding the SQLite database and uploaded
	// files.
	DataDir string `toml:"data_dir"`
}

// Segmenter holds text segmentation settings.
type Segmenter struct {
	// ChunkSize is the target chunk size in runes.
	ChunkSize int `toml:"chunk_size"`

	// Overlap is the number of trailing runes carried between adjacent
	// chunks. Must be smaller than ChunkSize.
	Overlap int `toml:"overlap"`
}

// Embedding holds embedding provider settings.
type Embedding struct {
	// Provider selects the embedding backend: "openai" or "ollama".
	Provider string `toml:"provider"`

	// BaseURL overrides the provider's API endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates against the provider. The OPENAI_API_KEY
	// environment variable takes precedence.
	APIKey string `toml:"api_key"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// Dimensions overrides the model's vector size.
	Dimensions int `toml:"dimensions"`

	// MaxBatchSize caps texts per provider call.
	MaxBatchSize int `toml:"max_batch_size"`

	// MaxWorkers caps concurrent provider calls.
	MaxWorkers int `toml:"max_workers"`

	// MaxRetries caps attempts per batch.
	MaxRetries int `toml:"max_retries"`

	// RequestsPerSecond throttles provider calls. Zero disables
	// throttling.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Vector holds vector index settings.
type Vector struct {
	// Store selects the index backend: "qdrant" or "memory".
	Store string `toml:"store"`

	// BaseURL is the Qdrant REST endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates against Qdrant. The QDRANT_API_KEY
	// environment variable takes precedence.
	APIKey string `toml:"api_key"`

	// TimeoutSeconds bounds each index request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the per-request index timeout, zero when unset.
func (v Vector) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// Rerank holds reranking settings.
type Rerank struct {
	// Enabled toggles the reranking stage. Retrieval degrades to
	// similarity order when disabled.
	Enabled bool `toml:"enabled"`

	// BaseURL is the rerank API endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates against the rerank API. The RERANK_API_KEY
	// environment variable takes precedence.
	APIKey string `toml:"api_key"`

	// Model is the rerank model name.
	Model string `toml:"model"`
}

// Chat holds chat model and turn settings.
type Chat struct {
	// BaseURL overrides the chat API endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates against the chat API. The OPENAI_API_KEY
	// environment variable takes precedence.
	APIKey string `toml:"api_key"`

	// Model is the chat model name.
	Model string `toml:"model"`

	// RetrieveTopK is how many chunks to pull per selected document.
	RetrieveTopK int `toml:"retrieve_top_k"`

	// AnswerTopK is how many reranked chunks reach the model context.
	AnswerTopK int `toml:"answer_top_k"`

	// MaxTokens caps the model response length.
	MaxTokens int `toml:"max_tokens"`

	// Temperature is the sampling temperature.
	Temperature float64 `toml:"temperature"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server:  Server{ListenAddr: DefaultListenAddr},
		Storage: Storage{DataDir: DefaultDataDir},
		Vector:  Vector{Store: DefaultVectorStore},
		Embedding: Embedding{
			Provider: "openai",
		},
	}
}

// Load reads the TOML file at path, fills unset fields with defaults and
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides secrets from the environment so keys stay out of
// config files.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
		if c.Chat.APIKey == "" {
			c.Chat.APIKey = v
		}
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" && c.Vector.APIKey == "" {
		c.Vector.APIKey = v
	}
	if v := os.Getenv("RERANK_API_KEY"); v != "" && c.Rerank.APIKey == "" {
		c.Rerank.APIKey = v
	}
}

// Validate rejects configurations that cannot produce a working service.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required: %w", domain.ErrInvalidConfig)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required: %w", domain.ErrInvalidConfig)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("embedding.provider %q is not supported: %w", c.Embedding.Provider, domain.ErrInvalidConfig)
	}
	switch c.Vector.Store {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("vector.store %q is not supported: %w", c.Vector.Store, domain.ErrInvalidConfig)
	}
	if c.Segmenter.ChunkSize < 0 || c.Segmenter.Overlap < 0 {
		return fmt.Errorf("segmenter sizes must be non-negative: %w", domain.ErrInvalidConfig)
	}
	if c.Segmenter.ChunkSize > 0 && c.Segmenter.Overlap >= c.Segmenter.ChunkSize {
		return fmt.Errorf("segmenter.overlap must be smaller than segmenter.chunk_size: %w", domain.ErrInvalidConfig)
	}
	if c.Rerank.Enabled && c.Rerank.BaseURL == "" {
		return fmt.Errorf("rerank.base_url is required when reranking is enabled: %w", domain.ErrInvalidConfig)
	}
	return nil
}
