package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// Database drivers.
const (
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// DefaultTemperature applies when generation.temperature is absent.
const DefaultTemperature float32 = 0.4

// Config holds the librarian configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig selects and configures the document store.
// Addrs/Password apply to redis and valkey; URI to mongodb and postgres.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, mongodb, postgres (default: mongodb)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	URI              string   `yaml:"uri"`
	Database         string   `yaml:"database"`
	Collection       string   `yaml:"collection"`
	Table            string   `yaml:"table"`
	KeyPrefix        string   `yaml:"key_prefix"`
	IndexName        string   `yaml:"index_name"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// RetrievalConfig holds retrieval router settings.
type RetrievalConfig struct {
	Strategy      string `yaml:"strategy"` // memory, server (default: memory)
	TopK          int    `yaml:"top_k"`
	MaxK          int    `yaml:"max_k"`
	CandidatePool int    `yaml:"candidate_pool"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Provider            string      `yaml:"provider"` // openai, ollama (default: openai)
	APIKey              string      `yaml:"api_key"`
	BaseURL             string      `yaml:"base_url"`
	Model               string      `yaml:"model"`
	Dimensions          int         `yaml:"dimensions"`
	DocumentInstruction string      `yaml:"document_instruction"`
	QueryInstruction    string      `yaml:"query_instruction"`
	Cache               CacheConfig `yaml:"cache"`
}

// CacheConfig holds the embedding cache settings.
// With a redis/valkey document store and no addrs, the cache shares that store.
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLHours int      `yaml:"ttl_hours"` // 0 = no expiry
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// GenerationConfig holds chat model settings.
type GenerationConfig struct {
	Provider    string   `yaml:"provider"` // openai, ollama (default: openai)
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"` // nil = 0.4; an explicit 0 is kept
	MaxTokens   int      `yaml:"max_tokens"`
	Language    string   `yaml:"language"`
	Persona     string   `yaml:"persona"`
}

// IndexerConfig holds batch indexing settings.
type IndexerConfig struct {
	BatchSize      int `yaml:"batch_size"`
	PersistRetries int `yaml:"persist_retries"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config data, expanding ${VAR} references, then applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverMongoDB
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.Database == "" {
		c.Database.Database = "library"
	}
	if c.Database.Collection == "" {
		c.Database.Collection = "books"
	}
	if c.Database.Table == "" {
		c.Database.Table = "books"
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "book:"
	}
	if c.Database.IndexName == "" {
		c.Database.IndexName = "vector_index"
	}
	if c.Database.HNSWM <= 0 {
		c.Database.HNSWM = domain.DefaultHNSWM
	}
	if c.Database.HNSWEFConstruct <= 0 {
		c.Database.HNSWEFConstruct = domain.DefaultHNSWEFConstruction
	}

	if c.Retrieval.Strategy == "" {
		c.Retrieval.Strategy = "memory"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.MaxK <= 0 {
		c.Retrieval.MaxK = 50
	}
	if c.Retrieval.CandidatePool <= 0 {
		c.Retrieval.CandidatePool = 200
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = ProviderOpenAI
	}
	if c.Generation.Temperature == nil {
		t := DefaultTemperature
		c.Generation.Temperature = &t
	}

	if c.Indexer.BatchSize <= 0 {
		c.Indexer.BatchSize = 64
	}
	if c.Indexer.PersistRetries < 0 {
		c.Indexer.PersistRetries = 0
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverMongoDB, DriverPostgres:
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be one of redis, valkey, mongodb, postgres, got %q", c.Database.Driver)
	}

	switch c.Retrieval.Strategy {
	case "memory", "server":
	default:
		return fmt.Errorf("retrieval.strategy must be \"memory\" or \"server\", got %q", c.Retrieval.Strategy)
	}
	if c.Retrieval.TopK > c.Retrieval.MaxK {
		return fmt.Errorf("retrieval.top_k (%d) must not exceed retrieval.max_k (%d)",
			c.Retrieval.TopK, c.Retrieval.MaxK)
	}

	if err := validateProvider("embedding", c.Embedding.Provider, c.Embedding.Model); err != nil {
		return err
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if c.Database.Driver == DriverPostgres && c.Embedding.Dimensions == 0 {
		return fmt.Errorf("embedding.dimensions is required for driver %q", DriverPostgres)
	}
	if c.Embedding.Cache.Enabled && len(c.Embedding.Cache.Addrs) == 0 &&
		c.Database.Driver != DriverRedis && c.Database.Driver != DriverValkey {
		return fmt.Errorf("embedding.cache.addrs is required when database.driver is %q", c.Database.Driver)
	}

	if err := validateProvider("generation", c.Generation.Provider, c.Generation.Model); err != nil {
		return err
	}
	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %g", *t)
	}
	return nil
}

func validateProvider(section, provider, model string) error {
	switch provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("%s.provider must be \"openai\" or \"ollama\", got %q", section, provider)
	}
	if model == "" {
		return fmt.Errorf("%s.model is required", section)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
