package librarian

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	"github.com/kailas-cloud/librarian/internal/repository/bookstore"
	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
	"github.com/kailas-cloud/librarian/internal/usecase/indexer"
	"github.com/kailas-cloud/librarian/internal/usecase/rag"
	"github.com/kailas-cloud/librarian/internal/usecase/retrieval"
)

// Internal use case interfaces, swapped for fakes in tests.
type searchUseCase interface {
	Search(ctx context.Context, query string, k int) ([]result.Ranked, error)
	Strategy() retrieval.Strategy
}

type askUseCase interface {
	Ask(ctx context.Context, query string, k int) (rag.Answer, error)
}

type indexUseCase interface {
	Run(ctx context.Context, opts indexer.Options) (indexer.Report, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Client is the librarian SDK entry point.
type Client struct {
	handle    *bookstore.Handle
	db        pinger
	searchSvc searchUseCase
	askSvc    askUseCase
	indexSvc  indexUseCase
	snapshot  interface{ Invalidate() } // nil under StrategyServer
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to the document store.
// The provided context bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{strategy: StrategyMemory}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("librarian: document store required (use WithMongo, WithRedis, WithValkey or WithPostgres)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("librarian: embedder required (use WithEmbedder)")
	}
	if cfg.model == "" {
		return nil, errors.New("librarian: embedding model name required")
	}
	if cfg.strategy != StrategyMemory && cfg.strategy != StrategyServer {
		return nil, fmt.Errorf("librarian: unknown strategy %q", cfg.strategy)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	handle, err := bookstore.Open(ctx, storeConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("librarian: open store: %w", err)
	}
	return wireClient(handle, cfg, obs), nil
}

func storeConfig(cfg *clientConfig) bookstore.Config {
	return bookstore.Config{
		Driver:           cfg.driver,
		Addrs:            cfg.addrs,
		Password:         cfg.password,
		URI:              cfg.uri,
		Database:         orDefault(cfg.database, "library"),
		Collection:       orDefault(cfg.collection, "books"),
		Table:            orDefault(cfg.table, "books"),
		KeyPrefix:        "book:",
		IndexName:        orDefault(cfg.indexName, "vector_index"),
		Dimensions:       cfg.dimensions,
		HNSWM:            cfg.hnswM,
		EFConstruction:   cfg.hnswEF,
		ReadinessTimeout: cfg.readiness,
		CheckIndex:       cfg.strategy == StrategyServer,
	}
}

func wireClient(handle *bookstore.Handle, cfg *clientConfig, obs *observer) *Client {
	logger := zap.NewNop()

	var docEmb, queryEmb domain.Embedder = &embedderAdapter{inner: cfg.embedder}, &embedderAdapter{inner: cfg.embedder}
	if cfg.documentInstruction != "" {
		docEmb = domain.NewInstructionEmbedder(docEmb, cfg.documentInstruction)
	}
	if cfg.queryInstruction != "" {
		queryEmb = domain.NewInstructionEmbedder(queryEmb, cfg.queryInstruction)
	}

	var chat domain.ChatModel = noopChat{}
	if cfg.chat != nil {
		chat = &chatAdapter{inner: cfg.chat}
	}

	c := &Client{handle: handle, db: handle.Pinger, obs: obs}

	var backend retrieval.Retriever
	if cfg.strategy == StrategyServer {
		backend = retrieval.NewServerRetriever(handle.Books, queryEmb, cfg.candidatePool)
	} else {
		memory := retrieval.NewMemoryEngine(handle.Books, docEmb, queryEmb, retrieval.MemoryConfig{
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
		}, logger)
		backend = memory
		c.snapshot = memory
	}
	router := retrieval.NewRouter(cfg.strategy.internal(), backend, retrieval.RouterConfig{
		TopK: cfg.topK,
		MaxK: cfg.maxK,
	})
	c.searchSvc = router

	generator := rag.NewGenerator(chat, rag.GeneratorConfig{
		Persona:     cfg.persona,
		Language:    cfg.language,
		Temperature: cfg.temperature,
		MaxTokens:   cfg.maxTokens,
	}, logger)
	c.askSvc = rag.NewService(router, generator)

	c.indexSvc = indexer.New(handle.Books, docEmb, indexer.Config{
		Model:      cfg.model,
		Dimensions: cfg.dimensions,
	}, logger)

	c.healthSvc = healthuc.New(handle.Pinger, providerChecker(cfg.embedder), providerChecker(cfg.chat))
	return c
}

// Close releases the store connection.
func (c *Client) Close(ctx context.Context) error {
	if c.handle == nil {
		return nil
	}
	if err := c.handle.Close(ctx); err != nil {
		return fmt.Errorf("librarian: close: %w", err)
	}
	return nil
}

// Ping checks document store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Strategy reports the active ranking backend.
func (c *Client) Strategy() Strategy {
	return Strategy(c.searchSvc.Strategy())
}

// Search returns up to k books ranked by similarity to query.
// k == 0 means the default; a blank query returns no results.
func (c *Client) Search(ctx context.Context, query string, k int) (_ []Book, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	hits, err := c.searchSvc.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return booksFromRanked(hits), nil
}

// Ask answers question from the top k books.
// When nothing relevant is found the answer is empty, NoRelevantContext is set and no model is called.
func (c *Client) Ask(ctx context.Context, question string, k int) (_ Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	ans, err := c.askSvc.Ask(ctx, question, k)
	if errors.Is(err, domain.ErrNoRelevantContext) {
		return Answer{Sources: []Book{}, NoRelevantContext: true}, nil
	}
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return Answer{Text: ans.Text, Sources: booksFromRanked(ans.Sources)}, nil
}

// Index embeds books whose stored embedding is missing or stale, or every book when force is set.
// The in-memory snapshot is dropped after any book was indexed.
func (c *Client) Index(ctx context.Context, force bool) (_ IndexReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()

	rep, err := c.indexSvc.Run(ctx, indexer.Options{Force: force})
	if rep.Indexed > 0 && c.snapshot != nil {
		c.snapshot.Invalidate()
	}
	if err != nil {
		return reportFromIndexer(rep), fmt.Errorf("index: %w", err)
	}
	return reportFromIndexer(rep), nil
}

// InvalidateSnapshot drops the in-memory snapshot so the next search reloads the corpus.
// No-op under StrategyServer.
func (c *Client) InvalidateSnapshot() {
	if c.snapshot != nil {
		c.snapshot.Invalidate()
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
