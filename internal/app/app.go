// Package app wires configuration into the service's runtime dependencies.
// Both the API server and the CLI bootstrap through it.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doclens-ai/doclens/internal/agents"
	"github.com/doclens-ai/doclens/internal/cache"
	"github.com/doclens-ai/doclens/internal/config"
	"github.com/doclens-ai/doclens/internal/embedding"
	"github.com/doclens-ai/doclens/internal/extract"
	"github.com/doclens-ai/doclens/internal/ingest"
	"github.com/doclens-ai/doclens/internal/llm"
	"github.com/doclens-ai/doclens/internal/observability"
	"github.com/doclens-ai/doclens/internal/search"
	"github.com/doclens-ai/doclens/internal/storage"
)

// App holds the constructed runtime dependencies.
type App struct {
	Config    *config.Config
	Logger    *observability.Logger
	DB        *sql.DB
	Repos     *storage.Repositories
	Cache     cache.Client
	Embedder  embedding.Embedder
	Completer llm.Completer // nil without an API key
	Extractor *extract.Extractor
	Pipeline  *ingest.Pipeline
	Searcher  *search.Searcher
	RAG       *agents.RAGPipeline // nil without a chat model
}

// New builds the full dependency graph from configuration. It connects to
// Postgres and, when configured, Redis.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.Nop()
	}

	db, err := storage.Open(ctx, cfg.Database.DSN,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	repos := storage.NewRepositories(db)

	cacheClient, err := newCache(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		cacheClient.Close()
		db.Close()
		return nil, err
	}

	var completer llm.Completer
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.ChatModel,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			cacheClient.Close()
			db.Close()
			return nil, fmt.Errorf("create chat client: %w", err)
		}
		completer = client
	} else {
		logger.Warn().Msg("no chat API key configured, ingestion runs in heuristic mode and chat is disabled")
	}

	extractor := extract.NewExtractor(extract.Config{
		OCREnabled:          cfg.Ingestion.OCREnabled,
		PDFExtractorPath:    cfg.Ingestion.PDFExtractorPath,
		OfficeConverterPath: cfg.Ingestion.OfficeConverterPath,
		OCRBinaryPath:       cfg.Ingestion.OCRBinaryPath,
	})

	pipeline := ingest.NewPipeline(repos, extractor, embedder, completer, logger, ingest.Options{
		ChunkSize:          cfg.Ingestion.ChunkSize,
		ChunkOverlap:       cfg.Ingestion.ChunkOverlap,
		DedupeThreshold:    cfg.Ingestion.DedupeThreshold,
		EmbeddingBatchSize: cfg.Ingestion.EmbeddingBatchSize,
	})

	searcher := search.NewSearcher(db)

	var rag *agents.RAGPipeline
	if completer != nil {
		answers := cacheClient
		if !cfg.Retrieval.CacheAnswers {
			answers = nil
		}
		rag, err = agents.NewRAGPipeline(searcher, embedder, completer, answers, logger, agents.Options{
			TopK:          cfg.Retrieval.TopK,
			Rewrites:      cfg.Retrieval.Rewrites,
			Strictness:    cfg.Retrieval.JudgeStrictness,
			MaxIterations: cfg.Retrieval.MaxIterations,
			CacheTTL:      cfg.Cache.TTL,
		})
		if err != nil {
			cacheClient.Close()
			db.Close()
			return nil, fmt.Errorf("create answer pipeline: %w", err)
		}
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Repos:     repos,
		Cache:     cacheClient,
		Embedder:  embedder,
		Completer: completer,
		Extractor: extractor,
		Pipeline:  pipeline,
		Searcher:  searcher,
		RAG:       rag,
	}, nil
}

// Close releases database and cache connections.
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newCache(cfg *config.Config) (cache.Client, error) {
	if cfg.Cache.Driver == "redis" {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return client, nil
	}
	return cache.NewMemoryClient(1000), nil
}

// newEmbedder selects the OpenAI-compatible client, or the deterministic dev
// embedder under the explicit EMBEDDINGS_FALLBACK=dev flag. A missing API key
// is tolerated only in development mode; a production setup without a key is
// a configuration error, not a silent downgrade.
func newEmbedder(cfg *config.Config, logger *observability.Logger) (embedding.Embedder, error) {
	if cfg.Embedding.Fallback == "dev" {
		return embedding.NewDevEmbedder(cfg.Embedding.Dimension), nil
	}
	if cfg.Embedding.APIKey == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("no embedding API key configured, set OPENAI_API_KEY or EMBEDDINGS_FALLBACK=dev")
		}
		logger.Warn().Msg("no embedding API key configured, using deterministic dev embeddings")
		return embedding.NewDevEmbedder(cfg.Embedding.Dimension), nil
	}

	client, err := embedding.NewClient(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	return client, nil
}
