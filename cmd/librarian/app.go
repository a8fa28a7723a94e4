package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/config"
	"github.com/kailas-cloud/librarian/internal/db"
	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/metrics"
	"github.com/kailas-cloud/librarian/internal/repository/bookstore"
	"github.com/kailas-cloud/librarian/internal/repository/embcache"
	ollamaTransport "github.com/kailas-cloud/librarian/internal/transport/ollama"
	openaiTransport "github.com/kailas-cloud/librarian/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/librarian/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
	"github.com/kailas-cloud/librarian/internal/usecase/indexer"
	"github.com/kailas-cloud/librarian/internal/usecase/rag"
	"github.com/kailas-cloud/librarian/internal/usecase/retrieval"
	"github.com/kailas-cloud/librarian/internal/version"
)

// chatBackend is a chat model that can report its own availability.
type chatBackend interface {
	domain.ChatModel
	HealthCheck(ctx context.Context) error
}

// app holds the services built once per process.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *bookstore.Handle
	router  *retrieval.Router
	memory  *retrieval.MemoryEngine // nil under the server strategy
	rag     *rag.Service
	indexer *indexer.Service
	health  *healthuc.Service
	closers []func(ctx context.Context) error
}

// newApp is the composition root: store, embedder chains, retrieval, generation, indexing.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	strategy, err := retrieval.ParseStrategy(cfg.Retrieval.Strategy)
	if err != nil {
		return nil, err
	}

	logger.Info("Starting librarian",
		zap.String("version", version.Version),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("strategy", string(strategy)),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_provider", cfg.Generation.Provider),
		zap.String("generation_model", cfg.Generation.Model),
	)

	store, err := bookstore.Open(ctx, bookstore.Config{
		Driver:           cfg.Database.Driver,
		Addrs:            cfg.Database.Addrs,
		Password:         cfg.Database.Password,
		URI:              cfg.Database.URI,
		Database:         cfg.Database.Database,
		Collection:       cfg.Database.Collection,
		Table:            cfg.Database.Table,
		KeyPrefix:        cfg.Database.KeyPrefix,
		IndexName:        cfg.Database.IndexName,
		Dimensions:       cfg.Embedding.Dimensions,
		HNSWM:            cfg.Database.HNSWM,
		EFConstruction:   cfg.Database.HNSWEFConstruct,
		ReadinessTimeout: time.Duration(cfg.Database.ReadinessTimeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: store}
	a.closers = append(a.closers, store.Close)
	logger.Info("Connected to document store")

	cache, err := a.embeddingCache(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	docEmbedder, err := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, cache, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	queryEmbedder, err := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, cache, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	chat, err := buildChat(cfg.Generation, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	var backend retrieval.Retriever
	switch strategy {
	case retrieval.StrategyServer:
		backend = retrieval.NewServerRetriever(store.Books, queryEmbedder, cfg.Retrieval.CandidatePool)
	default:
		a.memory = retrieval.NewMemoryEngine(store.Books, docEmbedder, queryEmbedder, retrieval.MemoryConfig{
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		}, logger)
		backend = a.memory
	}
	a.router = retrieval.NewRouter(strategy, backend, retrieval.RouterConfig{
		TopK: cfg.Retrieval.TopK,
		MaxK: cfg.Retrieval.MaxK,
	})

	generator := rag.NewGenerator(chat, rag.GeneratorConfig{
		Persona:     cfg.Generation.Persona,
		Language:    cfg.Generation.Language,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	}, logger)
	a.rag = rag.NewService(a.router, generator)

	a.indexer = indexer.New(store.Books, docEmbedder, indexer.Config{
		Model:          cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
		BatchSize:      cfg.Indexer.BatchSize,
		PersistRetries: cfg.Indexer.PersistRetries,
	}, logger)

	a.health = healthuc.New(store.Pinger, newEmbeddingHealthChecker(docEmbedder), chat)
	return a, nil
}

// snapshot returns the memory engine as an invalidator, or nil under the server strategy.
func (a *app) snapshot() interface{ Invalidate() } {
	if a.memory == nil {
		return nil
	}
	return a.memory
}

// embeddingCache returns the key-value store backing the embedding cache, or nil when disabled.
func (a *app) embeddingCache(ctx context.Context) (db.KVStore, error) {
	cc := a.cfg.Embedding.Cache
	if !cc.Enabled {
		return nil, nil
	}
	if len(cc.Addrs) == 0 {
		if a.store.KV == nil {
			return nil, fmt.Errorf("embedding cache needs embedding.cache.addrs with driver %q", a.cfg.Database.Driver)
		}
		return a.store.KV, nil
	}

	kv, err := bookstore.OpenKV(ctx, cc.Addrs, cc.Password,
		time.Duration(a.cfg.Database.ReadinessTimeout)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		kv.Close()
		return nil
	})
	return kv, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	instruction string,
	cache db.KVStore,
	logger *zap.Logger,
) (domain.Embedder, error) {
	var base domain.Embedder
	switch cfg.Provider {
	case config.ProviderOllama:
		e, err := ollamaTransport.NewEmbedder(&ollamaTransport.Config{
			Host:   cfg.BaseURL,
			Model:  cfg.Model,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
		base = e
	default:
		base = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		})
	}

	embedder := base
	if cache != nil {
		embedder = embcache.New(base, cache, cfg.Model, cfg.Cache.TTL(), metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)

	// Instruction prefix is outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction), nil
	}
	return embedder, nil
}

func buildChat(cfg config.GenerationConfig, logger *zap.Logger) (chatBackend, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		c, err := ollamaTransport.NewChat(&ollamaTransport.Config{
			Host:   cfg.BaseURL,
			Model:  cfg.Model,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama chat: %w", err)
		}
		return c, nil
	default:
		return openaiTransport.NewChat(&openaiTransport.ChatConfig{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Logger:   logger,
		}), nil
	}
}

// embeddingHealthChecker adapts a domain.Embedder to health.ProviderChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
