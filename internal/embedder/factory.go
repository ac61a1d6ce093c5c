package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by NewFromEnv
const (
	EnvProvider     = "DOCSEARCH_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvJinaAPIKey   = "JINA_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	Endpoint          string
	CacheSize         int
	BatchSize         int
	RequestsPerSecond float64
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. DOCSEARCH_EMBEDDING_PROVIDER (openai, jina, local)
// 2. Check for API keys: OPENAI_API_KEY, JINA_API_KEY
// 3. Default to openai, which fails with a configuration error when no key
// is set
func NewFromEnv() (Embedder, error) {
	provider := DetectProvider()
	return New(Config{Provider: provider, APIKey: apiKeyFor(provider)})
}

// New creates an embedder with explicit configuration. An empty APIKey is
// looked up from the provider's environment variable.
func New(cfg Config) (Embedder, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderOpenAI
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = apiKeyFor(provider)
	}

	opts := []Option{
		WithModel(cfg.Model),
		WithEndpoint(cfg.Endpoint),
		WithBatchSize(cfg.BatchSize),
		WithCache(NewCache(cfg.CacheSize)),
	}
	if cfg.RequestsPerSecond != 0 {
		opts = append(opts, WithRateLimit(cfg.RequestsPerSecond))
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey, opts...)
	case ProviderJina:
		return NewJinaProvider(apiKey, opts...)
	case ProviderLocal:
		return NewLocalProvider(), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	return ProviderOpenAI
}

func apiKeyFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv(EnvOpenAIAPIKey)
	case ProviderJina:
		return os.Getenv(EnvJinaAPIKey)
	}
	return ""
}
