package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLMConfig configures the language model provider.
type LLMConfig struct {
	// Provider selects the implementation: "openai" or "ollama".
	Provider string `yaml:"provider"`

	// APIKey authenticates OpenAI-compatible providers.
	APIKey string `yaml:"api_key"`

	// Model is the model name.
	Model string `yaml:"model"`

	// BaseURL overrides the API endpoint, for OpenAI-compatible
	// gateways and local Ollama servers.
	BaseURL string `yaml:"base_url"`
}

// CacheConfig configures the Redis embedding cache.
type CacheConfig struct {
	// Enabled turns the cache on.
	Enabled bool `yaml:"enabled"`

	// Addr is the Redis address, e.g. "localhost:6379".
	Addr string `yaml:"addr"`

	// Password is the Redis password, empty for none.
	Password string `yaml:"password"`

	// DB is the Redis database number.
	DB int `yaml:"db"`

	// TTL is how long cached embeddings live. Zero means no expiry.
	TTL time.Duration `yaml:"ttl"`
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	// Provider selects the implementation: "openai" or "hash".
	// The hash provider is deterministic and needs no network, suited
	// to tests and offline runs.
	Provider string `yaml:"provider"`

	// APIKey authenticates the OpenAI provider.
	APIKey string `yaml:"api_key"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// BaseURL overrides the API endpoint.
	BaseURL string `yaml:"base_url"`

	// Dimensions is the embedding dimensionality.
	Dimensions int `yaml:"dimensions"`

	// RequestsPerSecond rate-limits embedding API calls.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Cache configures the optional Redis cache in front of the
	// provider.
	Cache CacheConfig `yaml:"cache"`
}

// StorageConfig configures the article store.
type StorageConfig struct {
	// Provider selects the backend: "sqlite", "postgres", "mysql", or
	// "memory".
	Provider string `yaml:"provider"`

	// DBPath is the database file path for sqlite.
	DBPath string `yaml:"db_path"`

	// DSN is the connection string for postgres and mysql.
	DSN string `yaml:"dsn"`

	// TableName is the article table name. Defaults to "articles".
	TableName string `yaml:"table_name"`
}

// SearchConfig tunes hybrid retrieval.
type SearchConfig struct {
	// Alpha weights the semantic branch against the keyword branch.
	Alpha float64 `yaml:"alpha"`

	// TopK is the default result count.
	TopK int `yaml:"top_k"`
}

// RankConfig tunes re-ranking.
type RankConfig struct {
	// Lambda is the MMR relevance/diversity tradeoff.
	Lambda float64 `yaml:"lambda"`

	// ScoreWeighted multiplies MMR relevance by the analysis score.
	ScoreWeighted bool `yaml:"score_weighted"`
}

// Config is the root pipeline configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Rank     RankConfig     `yaml:"rank"`

	// GraphPath is where the knowledge graph snapshot is persisted.
	GraphPath string `yaml:"graph_path"`

	// DedupThreshold is the vector similarity above which an article is
	// a near-duplicate.
	DedupThreshold float64 `yaml:"dedup_threshold"`

	// ConfidenceThreshold gates automatic approval of analyses.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// RecentContextDays bounds the recent-article context given to the
	// scorer.
	RecentContextDays int `yaml:"recent_context_days"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// NodeID seeds snowflake ID generation. Give each process a
	// distinct value when several ingest concurrently.
	NodeID int64 `yaml:"node_id"`
}

// DefaultConfig returns a configuration with sensible defaults:
// SQLite storage, OpenAI providers, hybrid search with alpha 0.6.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedder: EmbedderConfig{
			Provider:          "openai",
			Dimensions:        1536,
			RequestsPerSecond: 5,
			Cache: CacheConfig{
				Addr: "localhost:6379",
				TTL:  24 * time.Hour,
			},
		},
		Storage: StorageConfig{
			Provider:  "sqlite",
			DBPath:    "researchrag.db",
			TableName: "articles",
		},
		Search: SearchConfig{
			Alpha: 0.6,
			TopK:  5,
		},
		Rank: RankConfig{
			Lambda: 0.5,
		},
		GraphPath:           "knowledge_graph.json",
		DedupThreshold:      0.95,
		ConfidenceThreshold: 0.85,
		RecentContextDays:   7,
		LogLevel:            "info",
		NodeID:              1,
	}
}

// LoadConfig builds a configuration from defaults, an optional YAML file
// named by RESEARCHRAG_CONFIG, and RESEARCHRAG_* environment variables,
// in that order of precedence (environment wins).
//
// A .env file in the working directory is loaded first if present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path := os.Getenv("RESEARCHRAG_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile builds a configuration from defaults overlaid with the
// given YAML file, then the environment.
func LoadConfigFile(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setStr(&c.LLM.Provider, "RESEARCHRAG_LLM_PROVIDER")
	setStr(&c.LLM.APIKey, "RESEARCHRAG_LLM_API_KEY", "OPENAI_API_KEY")
	setStr(&c.LLM.Model, "RESEARCHRAG_LLM_MODEL")
	setStr(&c.LLM.BaseURL, "RESEARCHRAG_LLM_BASE_URL")

	setStr(&c.Embedder.Provider, "RESEARCHRAG_EMBEDDER_PROVIDER")
	setStr(&c.Embedder.APIKey, "RESEARCHRAG_EMBEDDER_API_KEY", "OPENAI_API_KEY")
	setStr(&c.Embedder.Model, "RESEARCHRAG_EMBEDDER_MODEL")
	setStr(&c.Embedder.BaseURL, "RESEARCHRAG_EMBEDDER_BASE_URL")
	setInt(&c.Embedder.Dimensions, "RESEARCHRAG_EMBEDDER_DIMENSIONS")
	setBool(&c.Embedder.Cache.Enabled, "RESEARCHRAG_CACHE_ENABLED")
	setStr(&c.Embedder.Cache.Addr, "RESEARCHRAG_CACHE_ADDR")
	setStr(&c.Embedder.Cache.Password, "RESEARCHRAG_CACHE_PASSWORD")
	setInt(&c.Embedder.Cache.DB, "RESEARCHRAG_CACHE_DB")

	setStr(&c.Storage.Provider, "RESEARCHRAG_STORAGE_PROVIDER")
	setStr(&c.Storage.DBPath, "RESEARCHRAG_DB_PATH")
	setStr(&c.Storage.DSN, "RESEARCHRAG_DSN")
	setStr(&c.Storage.TableName, "RESEARCHRAG_TABLE_NAME")

	setFloat(&c.Search.Alpha, "RESEARCHRAG_SEARCH_ALPHA")
	setInt(&c.Search.TopK, "RESEARCHRAG_SEARCH_TOP_K")
	setFloat(&c.Rank.Lambda, "RESEARCHRAG_RANK_LAMBDA")

	setStr(&c.GraphPath, "RESEARCHRAG_GRAPH_PATH")
	setFloat(&c.DedupThreshold, "RESEARCHRAG_DEDUP_THRESHOLD")
	setFloat(&c.ConfidenceThreshold, "RESEARCHRAG_CONFIDENCE_THRESHOLD")
	setInt(&c.RecentContextDays, "RESEARCHRAG_RECENT_CONTEXT_DAYS")
	setStr(&c.LogLevel, "RESEARCHRAG_LOG_LEVEL")
	setInt64(&c.NodeID, "RESEARCHRAG_NODE_ID")
}

// Validate checks the configuration for contradictions before any
// component is constructed.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("config: unknown llm provider %q: %w", c.LLM.Provider, ErrInvalidConfig)
	}
	switch c.Embedder.Provider {
	case "openai", "hash":
	default:
		return fmt.Errorf("config: unknown embedder provider %q: %w", c.Embedder.Provider, ErrInvalidConfig)
	}
	switch c.Storage.Provider {
	case "memory":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("config: sqlite storage requires db_path: %w", ErrInvalidConfig)
		}
	case "postgres", "mysql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: %s storage requires dsn: %w", c.Storage.Provider, ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("config: unknown storage provider %q: %w", c.Storage.Provider, ErrInvalidConfig)
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("config: search alpha must be in [0,1], got %v: %w", c.Search.Alpha, ErrInvalidConfig)
	}
	if c.Rank.Lambda < 0 || c.Rank.Lambda > 1 {
		return fmt.Errorf("config: rank lambda must be in [0,1], got %v: %w", c.Rank.Lambda, ErrInvalidConfig)
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("config: dedup threshold must be in (0,1], got %v: %w", c.DedupThreshold, ErrInvalidConfig)
	}
	return nil
}

func setStr(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
