package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/meridianhq/ragpipe/internal/adapters/driven/embedding"
	embeddingollama "github.com/meridianhq/ragpipe/internal/adapters/driven/embedding/ollama"
	embeddingopenai "github.com/meridianhq/ragpipe/internal/adapters/driven/embedding/openai"
	llmopenai "github.com/meridianhq/ragpipe/internal/adapters/driven/llm/openai"
	"github.com/meridianhq/ragpipe/internal/adapters/driven/rerank/cohere"
	"github.com/meridianhq/ragpipe/internal/adapters/driven/storage/disk"
	"github.com/meridianhq/ragpipe/internal/adapters/driven/storage/sqlite"
	"github.com/meridianhq/ragpipe/internal/adapters/driven/vector/memory"
	"github.com/meridianhq/ragpipe/internal/adapters/driven/vector/qdrant"
	"github.com/meridianhq/ragpipe/internal/adapters/driving/httpapi"
	"github.com/meridianhq/ragpipe/internal/config"
	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
	"github.com/meridianhq/ragpipe/internal/core/services"
	"github.com/meridianhq/ragpipe/internal/segmenter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document question answering server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	provider, err := buildEmbeddingProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := provider.Ping(pingCtx); err != nil {
		log.WithError(err).Warn("embedding provider unreachable at startup")
	}
	cancel()

	embedder, err := embedding.NewClient(provider, embedding.Config{
		MaxBatchSize:      cfg.Embedding.MaxBatchSize,
		MaxWorkers:        cfg.Embedding.MaxWorkers,
		MaxRetries:        cfg.Embedding.MaxRetries,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}, log)
	if err != nil {
		return err
	}

	index, err := buildVectorIndex(cfg, provider)
	if err != nil {
		return err
	}
	defer index.Close()

	var reranker driven.Reranker
	if cfg.Rerank.Enabled {
		reranker, err = cohere.New(cohere.Config{
			BaseURL: cfg.Rerank.BaseURL,
			APIKey:  cfg.Rerank.APIKey,
			Model:   cfg.Rerank.Model,
		})
		if err != nil {
			return err
		}
		defer reranker.Close()
	}

	model, err := llmopenai.New(llmopenai.Config{
		APIKey:  cfg.Chat.APIKey,
		BaseURL: cfg.Chat.BaseURL,
		Model:   cfg.Chat.Model,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	docs, err := sqlite.New(filepath.Join(cfg.Storage.DataDir, "ragpipe.db"))
	if err != nil {
		return err
	}
	defer docs.Close()

	files, err := disk.New(filepath.Join(cfg.Storage.DataDir, "uploads"))
	if err != nil {
		return err
	}

	chunkSize, overlap := cfg.Segmenter.ChunkSize, cfg.Segmenter.Overlap
	if chunkSize == 0 {
		chunkSize = segmenter.DefaultChunkSize
		if cfg.Segmenter.Overlap == 0 {
			overlap = segmenter.DefaultOverlap
		}
	}
	splitter, err := segmenter.New(chunkSize, overlap, nil)
	if err != nil {
		return err
	}

	ingest := services.NewIngestService(splitter, embedder, index, log)
	retrieval := services.NewRetrievalService(embedder, index, reranker, log)
	pipeline := services.NewPipelineService(ingest, retrieval)
	chat := services.NewChatService(retrieval, docs, model, services.ChatConfig{
		RetrieveTopK: cfg.Chat.RetrieveTopK,
		AnswerTopK:   cfg.Chat.AnswerTopK,
		MaxTokens:    cfg.Chat.MaxTokens,
		Temperature:  cfg.Chat.Temperature,
	}, log)

	server := httpapi.New(docs, files, pipeline, chat, log)
	return server.Run(cfg.Server.ListenAddr)
}

func buildEmbeddingProvider(cfg *config.Config) (driven.EmbeddingProvider, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embeddingopenai.New(embeddingopenai.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	case "ollama":
		return embeddingollama.New(embeddingollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("embedding provider %q is not supported: %w",
			cfg.Embedding.Provider, domain.ErrInvalidConfig)
	}
}

func buildVectorIndex(cfg *config.Config, provider driven.EmbeddingProvider) (driven.VectorIndex, error) {
	switch cfg.Vector.Store {
	case "memory":
		return memory.New(), nil
	case "qdrant":
		return qdrant.New(qdrant.Config{
			BaseURL:    cfg.Vector.BaseURL,
			APIKey:     cfg.Vector.APIKey,
			Dimensions: provider.Dimensions(),
			Timeout:    cfg.Vector.Timeout(),
		})
	default:
		return nil, fmt.Errorf("vector store %q is not supported: %w",
			cfg.Vector.Store, domain.ErrInvalidConfig)
	}
}
