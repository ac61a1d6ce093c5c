package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsearch-mcp/internal/embedder"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// clearEnv pins every variable Load reads to empty
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvDataDir, EnvLogLevel, EnvGitHubToken,
		embedder.EnvProvider, embedder.EnvOpenAIAPIKey, embedder.EnvJinaAPIKey} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultDataDir, cfg.Storage.Root)
	assert.Equal(t, 2000, cfg.Chunking.MaxTokens)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, "expo", cfg.Source.Owner)
	assert.Equal(t, ".mdx", cfg.Source.Extension)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "custom.yaml", `
storage:
  root: /var/lib/docsearch
chunking:
  max_tokens: 800
  overlap_tokens: 80
embedding:
  provider: local
search:
  max_results: 8
  score_threshold: 0.3
source:
  local_path: /src/expo
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/docsearch", cfg.Storage.Root)
	assert.Equal(t, 800, cfg.Chunking.MaxTokens)
	assert.Equal(t, 80, cfg.Chunking.OverlapTokens)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 8, cfg.SearchOptions().MaxResults)
	assert.InDelta(t, 0.3, cfg.SearchOptions().ScoreThreshold, 1e-9)
	assert.Equal(t, "/src/expo", cfg.Source.LocalPath)
	assert.Equal(t, "docs/pages", cfg.Source.DocsPath, "unset keys keep defaults")
	assert.Equal(t, embedder.DefaultCacheSize, cfg.Embedding.CacheSize)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.Len(t, cfg.ChunkerOptions(), 2)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		var cfgErr *types.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("default file is optional", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default().Storage, cfg.Storage)
	})

	t.Run("default file is read when present", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, DefaultFile, "storage:\n  root: elsewhere\n")
		t.Chdir(dir)
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "elsewhere", cfg.Storage.Root)
	})
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "bad.yaml", "storage: [unclosed")
	_, err := Load(path)
	var cfgErr *types.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, path, cfgErr.Setting)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "c.yaml", "storage:\n  root: from-file\nlog_level: info\n")

	t.Setenv(EnvDataDir, "/from/env")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvGitHubToken, "ghp_test")
	t.Setenv(embedder.EnvProvider, "JINA")
	t.Setenv(embedder.EnvJinaAPIKey, "jina-key")
	t.Setenv(embedder.EnvOpenAIAPIKey, "openai-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Storage.Root)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "ghp_test", cfg.Source.GitHubToken)
	assert.Equal(t, embedder.ProviderJina, cfg.Embedding.Provider)
	assert.Equal(t, "jina-key", cfg.Embedding.APIKey, "key follows the selected provider")

	ec := cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderJina, ec.Provider)
	assert.Equal(t, "jina-key", ec.APIKey)
}

func TestEmbedderConfig_DetectsProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv(embedder.EnvOpenAIAPIKey, "openai-key")

	cfg := Default()
	cfg.ApplyEnv()
	ec := cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderOpenAI, ec.Provider)
	assert.Equal(t, "openai-key", ec.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		setting string
	}{
		{"empty root", func(c *Config) { c.Storage.Root = " " }, "storage.root"},
		{"zero max tokens", func(c *Config) { c.Chunking.MaxTokens = 0 }, "chunking.max_tokens"},
		{"overlap equals max", func(c *Config) { c.Chunking.OverlapTokens = c.Chunking.MaxTokens }, "chunking.overlap_tokens"},
		{"negative overlap", func(c *Config) { c.Chunking.OverlapTokens = -1 }, "chunking.overlap_tokens"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"negative cache", func(c *Config) { c.Embedding.CacheSize = -1 }, "embedding.cache_size"},
		{"batch too large", func(c *Config) { c.Embedding.BatchSize = embedder.MaxBatchSize + 1 }, "embedding.batch_size"},
		{"negative rate", func(c *Config) { c.Embedding.RequestsPerSecond = -1 }, "embedding.requests_per_second"},
		{"negative concurrency", func(c *Config) { c.Source.Concurrency = -2 }, "source.concurrency"},
		{"extension without dot", func(c *Config) { c.Source.Extension = "mdx" }, "source.extension"},
		{"max results too low", func(c *Config) { c.Search.MaxResults = 0 }, "search.max_results"},
		{"max results too high", func(c *Config) { c.Search.MaxResults = 11 }, "search.max_results"},
		{"threshold above one", func(c *Config) { c.Search.ScoreThreshold = 1.5 }, "search.score_threshold"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cfgErr *types.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.setting, cfgErr.Setting)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "DOCSEARCH_TEST_DOTENV_VALUE"
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", key+"=from-dotenv\n")
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-dotenv", os.Getenv(key))

	t.Run("existing variables win", func(t *testing.T) {
		t.Setenv(key, "from-shell")
		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "from-shell", os.Getenv(key))
	})
}
