// Package config loads ctxselect configuration from the environment.
//
// Values are read once at process start into a Config struct that is passed
// explicitly to the components that need it. An optional .env file in the
// working directory is loaded first.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dshills/ctxselect/pkg/types"
)

// DefaultDBDir is the default location for the database directory
const DefaultDBDir = "~/.ctxselect"

// DBFileName is the SQLite file created inside the database directory
const DBFileName = "ctxselect.db"

// Cache backends
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendMemory = "memory"
)

// Config holds all runtime settings
type Config struct {
	DBPath string `env:"CTXSELECT_DB_PATH" envDefault:"~/.ctxselect"`
	Debug  bool   `env:"CTXSELECT_DEBUG" envDefault:"false"`

	Selector   SelectorConfig
	Classifier ClassifierConfig
	Embedding  EmbeddingConfig
	Retrieval  RetrievalConfig
	Indexer    IndexerConfig
}

// SelectorConfig holds defaults for context selection
type SelectorConfig struct {
	MaxContexts int    `env:"CTXSELECT_MAX_CONTEXTS" envDefault:"5"`
	Strategy    string `env:"CTXSELECT_STRATEGY" envDefault:"auto"`
}

// ClassifierConfig holds settings for conversation-vs-code classification
type ClassifierConfig struct {
	Model        string        `env:"CTXSELECT_CLASSIFIER_MODEL" envDefault:"gpt-4o-mini"`
	Timeout      time.Duration `env:"CTXSELECT_CLASSIFIER_TIMEOUT" envDefault:"5s"`
	CacheTTL     time.Duration `env:"CTXSELECT_CLASSIFICATION_TTL" envDefault:"86400s"`
	CacheBackend string        `env:"CTXSELECT_CACHE_BACKEND" envDefault:"sqlite"`
	CacheSize    int           `env:"CTXSELECT_CACHE_SIZE" envDefault:"10000"`
	APIKey       string        `env:"OPENAI_API_KEY"`
	BaseURL      string        `env:"OPENAI_BASE_URL"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider    string `env:"CTXSELECT_EMBEDDING_PROVIDER"`
	JinaAPIKey  string `env:"JINA_API_KEY"`
	JinaBaseURL string `env:"JINA_BASE_URL"`
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	BaseURL     string `env:"OPENAI_BASE_URL"`
	CacheSize   int    `env:"CTXSELECT_EMBEDDING_CACHE_SIZE" envDefault:"10000"`
}

// RetrievalConfig controls the retrieval client
type RetrievalConfig struct {
	Mode     string        `env:"CTXSELECT_SEARCH_MODE" envDefault:"vector"`
	CacheTTL time.Duration `env:"CTXSELECT_SEARCH_CACHE_TTL" envDefault:"1h"`
}

// IndexerConfig controls indexing concurrency and token counting
type IndexerConfig struct {
	Workers int `env:"CTXSELECT_INDEX_WORKERS" envDefault:"4"`
	// TokenEncoding is a tiktoken encoding name, or "estimate" for chars/4
	TokenEncoding string `env:"CTXSELECT_TOKEN_ENCODING" envDefault:"cl100k_base"`
}

// TokenEstimate disables tiktoken in favour of the chars/4 estimate
const TokenEstimate = "estimate"

// Load reads an optional .env file and parses the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse parses the current environment without touching .env files
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	if c.Selector.MaxContexts < 0 {
		return fmt.Errorf("CTXSELECT_MAX_CONTEXTS must be >= 0, got %d", c.Selector.MaxContexts)
	}
	if _, err := types.ParseStrategy(c.Selector.Strategy); err != nil {
		return fmt.Errorf("CTXSELECT_STRATEGY: %w", err)
	}
	switch strings.ToLower(c.Classifier.CacheBackend) {
	case CacheBackendSQLite, CacheBackendMemory:
	default:
		return fmt.Errorf("CTXSELECT_CACHE_BACKEND must be %q or %q", CacheBackendSQLite, CacheBackendMemory)
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", "jina", "openai", "local":
	default:
		return fmt.Errorf("CTXSELECT_EMBEDDING_PROVIDER must be jina, openai or local, got %q", c.Embedding.Provider)
	}
	switch strings.ToLower(c.Retrieval.Mode) {
	case "vector", "keyword", "hybrid":
	default:
		return fmt.Errorf("CTXSELECT_SEARCH_MODE must be vector, keyword or hybrid, got %q", c.Retrieval.Mode)
	}
	if c.Classifier.Timeout <= 0 {
		return fmt.Errorf("CTXSELECT_CLASSIFIER_TIMEOUT must be positive")
	}
	if c.Indexer.Workers <= 0 {
		c.Indexer.Workers = 1
	}
	return nil
}

// DefaultStrategy returns the configured default strategy
func (c *Config) DefaultStrategy() types.StrategyName {
	name, err := types.ParseStrategy(c.Selector.Strategy)
	if err != nil {
		return types.StrategyAuto
	}
	return name
}

// DatabaseFile resolves the SQLite file path, expanding a leading ~
func (c *Config) DatabaseFile() (string, error) {
	dir := c.DBPath
	if dir == "" {
		dir = DefaultDBDir
	}
	if dir == ":memory:" {
		return dir, nil
	}
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return filepath.Join(dir, DBFileName), nil
}
