// Package config loads docsearch settings from a YAML file, an optional
// .env file and environment overrides, in that order of increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/docsearch-mcp/internal/chunker"
	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/internal/fetcher"
	"github.com/dshills/docsearch-mcp/internal/searcher"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// DefaultFile is read from the working directory when no path is given
const DefaultFile = "docsearch.yaml"

// DefaultDataDir is the storage root relative to the working directory
const DefaultDataDir = "data"

// Environment overrides
const (
	EnvDataDir     = "DOCSEARCH_DATA_DIR"
	EnvLogLevel    = "DOCSEARCH_LOG_LEVEL"
	EnvGitHubToken = "GITHUB_TOKEN"
)

// StorageConfig locates versioned data on disk.
type StorageConfig struct {
	Root string `yaml:"root"`
}

// ChunkingConfig sets the passage token budget.
type ChunkingConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// EmbeddingConfig selects and tunes the embedding provider. The API key is
// only read from the environment.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // openai, jina or local; empty detects from the environment
	Model             string  `yaml:"model"`
	Endpoint          string  `yaml:"endpoint"`
	CacheSize         int     `yaml:"cache_size"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	APIKey            string  `yaml:"-"`
}

// SourceConfig says where documentation pages come from.
type SourceConfig struct {
	Owner       string `yaml:"owner"`
	Repo        string `yaml:"repo"`
	DocsPath    string `yaml:"docs_path"`
	Extension   string `yaml:"extension"`
	Concurrency int    `yaml:"concurrency"`
	LocalPath   string `yaml:"local_path"` // Checkout used by init --local
	GitHubToken string `yaml:"-"`
}

// SearchConfig holds defaults for searches that omit options.
type SearchConfig struct {
	MaxResults     int     `yaml:"max_results"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// Config is the root configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Source    SourceConfig    `yaml:"source"`
	Search    SearchConfig    `yaml:"search"`
	LogLevel  string          `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Root: DefaultDataDir},
		Chunking: ChunkingConfig{
			MaxTokens:     chunker.DefaultMaxTokens,
			OverlapTokens: chunker.DefaultOverlapTokens,
		},
		Embedding: EmbeddingConfig{
			CacheSize:         embedder.DefaultCacheSize,
			BatchSize:         embedder.DefaultBatchSize,
			RequestsPerSecond: embedder.DefaultRequestsPerSecond,
		},
		Source: SourceConfig{
			Owner:       fetcher.DefaultSource.Owner,
			Repo:        fetcher.DefaultSource.Repo,
			DocsPath:    fetcher.DefaultSource.DocsPath,
			Extension:   fetcher.DefaultSource.Extension,
			Concurrency: fetcher.DefaultConcurrency,
		},
		Search: SearchConfig{
			MaxResults:     searcher.DefaultMaxResults,
			ScoreThreshold: searcher.DefaultScoreThreshold,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path reads DefaultFile if it exists; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &types.ConfigError{Setting: path, Err: err}
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, &types.ConfigError{Setting: path, Err: err}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Storage.Root = v
	}
	if v := os.Getenv(embedder.EnvProvider); v != "" {
		c.Embedding.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	c.Source.GitHubToken = os.Getenv(EnvGitHubToken)

	provider := c.Embedding.Provider
	if provider == "" {
		provider = embedder.DetectProvider()
	}
	switch provider {
	case embedder.ProviderOpenAI:
		c.Embedding.APIKey = os.Getenv(embedder.EnvOpenAIAPIKey)
	case embedder.ProviderJina:
		c.Embedding.APIKey = os.Getenv(embedder.EnvJinaAPIKey)
	}
}

// Validate checks ranges and enumerations. Credentials are checked when
// the embedder is created, since listing versions needs none.
func (c *Config) Validate() error {
	invalid := func(setting, format string, args ...interface{}) error {
		return &types.ConfigError{Setting: setting, Err: fmt.Errorf(format, args...)}
	}

	if strings.TrimSpace(c.Storage.Root) == "" {
		return invalid("storage.root", "must not be empty")
	}
	if c.Chunking.MaxTokens <= 0 {
		return invalid("chunking.max_tokens", "must be positive, got %d", c.Chunking.MaxTokens)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return invalid("chunking.overlap_tokens", "must be in [0, %d), got %d", c.Chunking.MaxTokens, c.Chunking.OverlapTokens)
	}

	switch c.Embedding.Provider {
	case "", embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderLocal:
	default:
		return invalid("embedding.provider", "unknown provider %q", c.Embedding.Provider)
	}
	if c.Embedding.CacheSize < 0 {
		return invalid("embedding.cache_size", "must not be negative")
	}
	if c.Embedding.BatchSize < 0 || c.Embedding.BatchSize > embedder.MaxBatchSize {
		return invalid("embedding.batch_size", "must be in [0, %d], got %d", embedder.MaxBatchSize, c.Embedding.BatchSize)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return invalid("embedding.requests_per_second", "must not be negative")
	}

	if c.Source.Concurrency < 0 {
		return invalid("source.concurrency", "must not be negative")
	}
	if c.Source.Extension != "" && !strings.HasPrefix(c.Source.Extension, ".") {
		return invalid("source.extension", "must start with a dot, got %q", c.Source.Extension)
	}

	if c.Search.MaxResults < searcher.MinMaxResults || c.Search.MaxResults > searcher.MaxMaxResults {
		return invalid("search.max_results", "must be in [%d, %d], got %d", searcher.MinMaxResults, searcher.MaxMaxResults, c.Search.MaxResults)
	}
	if c.Search.ScoreThreshold < 0 || c.Search.ScoreThreshold > 1 {
		return invalid("search.score_threshold", "must be in [0, 1], got %g", c.Search.ScoreThreshold)
	}

	if _, err := c.Level(); err != nil {
		return invalid("log_level", "%v", err)
	}
	return nil
}

// Level parses LogLevel (debug, info, warn, error).
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// EmbedderConfig converts the embedding section for embedder.New.
func (c *Config) EmbedderConfig() embedder.Config {
	provider := c.Embedding.Provider
	if provider == "" {
		provider = embedder.DetectProvider()
	}
	return embedder.Config{
		Provider:          provider,
		APIKey:            c.Embedding.APIKey,
		Model:             c.Embedding.Model,
		Endpoint:          c.Embedding.Endpoint,
		CacheSize:         c.Embedding.CacheSize,
		BatchSize:         c.Embedding.BatchSize,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
	}
}

// FetchSource converts the source section for the fetchers.
func (c *Config) FetchSource() fetcher.Source {
	return fetcher.Source{
		Owner:     c.Source.Owner,
		Repo:      c.Source.Repo,
		DocsPath:  c.Source.DocsPath,
		Extension: c.Source.Extension,
	}
}

// ChunkerOptions converts the chunking section for chunker.New.
func (c *Config) ChunkerOptions() []chunker.Option {
	return []chunker.Option{
		chunker.WithMaxTokens(c.Chunking.MaxTokens),
		chunker.WithOverlapTokens(c.Chunking.OverlapTokens),
	}
}

// SearchOptions returns the configured search defaults.
func (c *Config) SearchOptions() searcher.Options {
	return searcher.Options{
		MaxResults:     c.Search.MaxResults,
		ScoreThreshold: c.Search.ScoreThreshold,
	}
}
