package librarian

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver     string // mongodb, redis, valkey, postgres
	addrs      []string
	password   string
	uri        string
	database   string
	collection string
	table      string
	indexName  string
	readiness  time.Duration

	embedder            Embedder
	model               string
	dimensions          int
	documentInstruction string
	queryInstruction    string

	chat        ChatModel
	persona     string
	language    string
	temperature *float32
	maxTokens   int

	strategy      Strategy
	topK          int
	maxK          int
	candidatePool int
	hnswM         int
	hnswEF        int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithMongo stores books in a MongoDB collection. Server-side search uses Atlas $vectorSearch.
func WithMongo(uri, database, collection string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "mongodb"
		c.uri = uri
		c.database = database
		c.collection = collection
	})
}

// WithRedis stores books as Redis hashes. Server-side search uses an FT HNSW index.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey stores books as Valkey hashes with the valkey-search module.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPostgres stores books in a pgvector table. Requires WithEmbedder dimensions.
func WithPostgres(connString, table string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.uri = connString
		c.table = table
	})
}

// WithVectorIndex names the server-side vector index (Mongo search index or Redis FT index).
func WithVectorIndex(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
	})
}

// WithEmbedder sets the embedding provider. Required.
// model and dimensions decide whether stored embeddings are current; dimensions 0 skips the length check.
func WithEmbedder(e Embedder, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.model = model
		c.dimensions = dimensions
	})
}

// WithInstructions sets prefixes prepended to documents and queries before embedding.
func WithInstructions(document, query string) Option {
	return optionFunc(func(c *clientConfig) {
		c.documentInstruction = document
		c.queryInstruction = query
	})
}

// WithChatModel sets the language model used by Ask.
func WithChatModel(m ChatModel) Option {
	return optionFunc(func(c *clientConfig) {
		c.chat = m
	})
}

// WithPersona replaces the default librarian persona in the system prompt.
func WithPersona(persona string) Option {
	return optionFunc(func(c *clientConfig) {
		c.persona = persona
	})
}

// WithAnswerLanguage asks the model to answer in the given language.
func WithAnswerLanguage(language string) Option {
	return optionFunc(func(c *clientConfig) {
		c.language = language
	})
}

// WithGeneration sets sampling temperature and the completion token limit (maxTokens 0 = model default).
// Without this option the temperature is 0.4; temperature 0 is honoured.
func WithGeneration(temperature float32, maxTokens int) Option {
	return optionFunc(func(c *clientConfig) {
		c.temperature = &temperature
		c.maxTokens = maxTokens
	})
}

// WithStrategy selects in-memory or server-side ranking. Default: StrategyMemory.
func WithStrategy(s Strategy) Option {
	return optionFunc(func(c *clientConfig) {
		c.strategy = s
	})
}

// WithTopK sets the default and maximum k. Defaults: 5 and 50.
func WithTopK(defaultK, maxK int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = defaultK
		c.maxK = maxK
	})
}

// WithCandidatePool sets the approximate search candidate pool. Default: 200.
func WithCandidatePool(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.candidatePool = n
	})
}

// WithHNSW configures HNSW index parameters for Redis, Valkey and PostgreSQL.
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEF = efConstruct
	})
}

// WithReadinessTimeout bounds the initial connection check. Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readiness = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
