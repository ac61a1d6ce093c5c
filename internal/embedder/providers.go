package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"

	"github.com/dshills/docsearch-mcp/pkg/types"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Endpoints
	OpenAIEndpoint = "https://api.openai.com/v1/embeddings"
	JinaEndpoint   = "https://api.jina.ai/v1/embeddings"

	// Default models
	DefaultOpenAIModel = "text-embedding-3-large"
	DefaultJinaModel   = "jina-embeddings-v3"
	LocalModel         = "local-hashed-bow"

	// Dimensions
	LocalDimension = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// DefaultCacheSize is the number of query embeddings kept in memory
	DefaultCacheSize = 1000

	// DefaultRequestsPerSecond throttles calls to remote providers
	DefaultRequestsPerSecond = 5

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// modelDimensions lists the output size of every supported remote model
var modelDimensions = map[string]int{
	"text-embedding-3-large":     3072,
	"text-embedding-3-small":     1536,
	"text-embedding-ada-002":     1536,
	"jina-embeddings-v3":         1024,
	"jina-embeddings-v2-base-en": 768,
}

// Option configures an APIProvider
type Option func(*APIProvider)

// WithModel selects a model; unknown models fail at construction
func WithModel(model string) Option {
	return func(p *APIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithEndpoint overrides the API URL
func WithEndpoint(url string) Option {
	return func(p *APIProvider) {
		if url != "" {
			p.endpoint = url
		}
	}
}

// WithBatchSize sets how many passages go into one request
func WithBatchSize(n int) Option {
	return func(p *APIProvider) {
		if n > 0 && n <= MaxBatchSize {
			p.batchSize = n
		}
	}
}

// WithRateLimit caps requests per second; zero or less disables the limit
func WithRateLimit(rps float64) Option {
	return func(p *APIProvider) {
		if rps <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithCache enables query embedding caching
func WithCache(c *Cache) Option {
	return func(p *APIProvider) { p.cache = c }
}

// WithRetry replaces the retry policy
func WithRetry(cfg RetryConfig) Option {
	return func(p *APIProvider) { p.retry = cfg }
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(p *APIProvider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// APIProvider implements Embedder over an OpenAI-compatible embeddings
// endpoint. OpenAI and Jina share the same request and response shape.
type APIProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	batchSize  int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	cache      *Cache
}

// NewOpenAIProvider creates an OpenAI embedder. A missing key is reported
// as a configuration error.
func NewOpenAIProvider(apiKey string, opts ...Option) (*APIProvider, error) {
	return newAPIProvider(ProviderOpenAI, EnvOpenAIAPIKey, OpenAIEndpoint, DefaultOpenAIModel, apiKey, opts)
}

// NewJinaProvider creates a Jina AI embedder
func NewJinaProvider(apiKey string, opts ...Option) (*APIProvider, error) {
	return newAPIProvider(ProviderJina, EnvJinaAPIKey, JinaEndpoint, DefaultJinaModel, apiKey, opts)
}

func newAPIProvider(name, keyEnv, endpoint, model, apiKey string, opts []Option) (*APIProvider, error) {
	if apiKey == "" {
		return nil, &types.ConfigError{Setting: keyEnv, Err: ErrMissingAPIKey}
	}

	p := &APIProvider{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		batchSize:  DefaultBatchSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}

	dim, ok := modelDimensions[p.model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, p.model)
	}
	p.dimension = dim
	return p, nil
}

// EmbedQuery implements Embedder
func (p *APIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if v, ok := p.cache.Get(text); ok {
		return v, nil
	}

	vectors, err := p.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	p.cache.Set(text, vectors[0])
	return vectors[0], nil
}

// EmbedDocuments implements Embedder. Batches are sent one after another.
func (p *APIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (p *APIProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
		return p.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
	}
	return vectors, nil
}

func (p *APIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": p.model,
	})
	if err != nil {
		return nil, &permanentError{fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &permanentError{fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &permanentError{&types.ConfigError{Setting: p.name + " api key", Err: apiErr}}
		case http.StatusBadRequest, http.StatusNotFound:
			return nil, &permanentError{apiErr}
		}
		return nil, apiErr
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(apiResp.Data), len(texts))
	}

	sort.SliceStable(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})

	vectors := make([][]float32, len(apiResp.Data))
	for i, d := range apiResp.Data {
		if len(d.Embedding) != p.dimension {
			return nil, &permanentError{fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), p.dimension)}
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Dimension implements Embedder
func (p *APIProvider) Dimension() int { return p.dimension }

// Provider implements Embedder
func (p *APIProvider) Provider() string { return p.name }

// Model implements Embedder
func (p *APIProvider) Model() string { return p.model }

// Close implements Embedder
func (p *APIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds text offline by hashing words into a fixed number of
// buckets. Texts sharing vocabulary score higher, which is enough for
// development and tests without an API key.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{dimension: LocalDimension}
}

// EmbedQuery implements Embedder
func (l *LocalProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return l.embed(text), nil
}

// EmbedDocuments implements Embedder
func (l *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embed(text)
	}
	return out, nil
}

func (l *LocalProvider) embed(text string) []float32 {
	vector := make([]float32, l.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := xxhash.Sum64String(w)
		idx := h % uint64(l.dimension)
		if h>>63 == 1 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}
	return NormalizeVector(vector)
}

// Dimension implements Embedder
func (l *LocalProvider) Dimension() int { return l.dimension }

// Provider implements Embedder
func (l *LocalProvider) Provider() string { return ProviderLocal }

// Model implements Embedder
func (l *LocalProvider) Model() string { return LocalModel }

// Close implements Embedder
func (l *LocalProvider) Close() error { return nil }
