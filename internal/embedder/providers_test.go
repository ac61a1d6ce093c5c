package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsearch-mcp/pkg/types"
)

// embeddingServer answers like the OpenAI embeddings API. Each vector's
// first element is the input index so ordering can be checked.
func embeddingServer(t *testing.T, dim int, calls *int32, status func(call int32) int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		if status != nil {
			if code := status(n); code != http.StatusOK {
				http.Error(w, "failure", code)
				return
			}
		}

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		// Reverse order to exercise index sorting
		for i := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(i)
			data[len(req.Input)-1-i] = item{Index: i, Embedding: vec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data, "model": req.Model})
	}))
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestNewAPIProvider(t *testing.T) {
	t.Run("missing key is a config error", func(t *testing.T) {
		_, err := NewOpenAIProvider("")
		var cfgErr *types.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, EnvOpenAIAPIKey, cfgErr.Setting)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("defaults", func(t *testing.T) {
		p, err := NewOpenAIProvider("k")
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, p.Provider())
		assert.Equal(t, DefaultOpenAIModel, p.Model())
		assert.Equal(t, 3072, p.Dimension())

		j, err := NewJinaProvider("k")
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, j.Provider())
		assert.Equal(t, 1024, j.Dimension())
	})

	t.Run("model selects dimension", func(t *testing.T) {
		p, err := NewOpenAIProvider("k", WithModel("text-embedding-3-small"))
		require.NoError(t, err)
		assert.Equal(t, 1536, p.Dimension())
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := NewOpenAIProvider("k", WithModel("nope"))
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}

func TestAPIProvider_EmbedDocuments(t *testing.T) {
	var calls int32
	server := embeddingServer(t, 1536, &calls, nil)
	defer server.Close()

	p, err := NewOpenAIProvider("test-key",
		WithModel("text-embedding-3-small"),
		WithEndpoint(server.URL),
		WithBatchSize(2),
		WithRateLimit(0),
		WithRetry(fastRetry()),
	)
	require.NoError(t, err)
	defer p.Close()

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)

	require.Len(t, vectors, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "five texts in batches of two")
	// Position within each batch survives the reversed response
	for i, want := range []float32{0, 1, 0, 1, 0} {
		assert.Equal(t, want, vectors[i][0], "vector %d", i)
	}
}

func TestAPIProvider_EmbedQueryCaching(t *testing.T) {
	var calls int32
	server := embeddingServer(t, 1024, &calls, nil)
	defer server.Close()

	p, err := NewJinaProvider("test-key",
		WithEndpoint(server.URL),
		WithCache(NewCache(10)),
		WithRateLimit(0),
		WithRetry(fastRetry()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := p.EmbedQuery(ctx, "routing")
	require.NoError(t, err)
	second, err := p.EmbedQuery(ctx, "routing")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = p.EmbedQuery(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestAPIProvider_Retry(t *testing.T) {
	t.Run("transient errors are retried", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, 1536, &calls, func(n int32) int {
			if n < 3 {
				return http.StatusServiceUnavailable
			}
			return http.StatusOK
		})
		defer server.Close()

		p, err := NewOpenAIProvider("test-key", WithModel("text-embedding-3-small"),
			WithEndpoint(server.URL), WithRateLimit(0), WithRetry(fastRetry()))
		require.NoError(t, err)

		_, err = p.EmbedQuery(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, 1536, &calls, func(int32) int { return http.StatusInternalServerError })
		defer server.Close()

		p, err := NewOpenAIProvider("test-key", WithModel("text-embedding-3-small"),
			WithEndpoint(server.URL), WithRateLimit(0), WithRetry(fastRetry()))
		require.NoError(t, err)

		_, err = p.EmbedQuery(context.Background(), "q")
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("unauthorized is not retried", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, 1536, &calls, func(int32) int { return http.StatusUnauthorized })
		defer server.Close()

		p, err := NewOpenAIProvider("test-key", WithModel("text-embedding-3-small"),
			WithEndpoint(server.URL), WithRateLimit(0), WithRetry(fastRetry()))
		require.NoError(t, err)

		_, err = p.EmbedQuery(context.Background(), "q")
		var cfgErr *types.ConfigError
		assert.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, 8, &calls, nil)
		defer server.Close()

		p, err := NewOpenAIProvider("test-key", WithModel("text-embedding-3-small"),
			WithEndpoint(server.URL), WithRateLimit(0), WithRetry(fastRetry()))
		require.NoError(t, err)

		_, err = p.EmbedQuery(context.Background(), "q")
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("context cancellation stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		_, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			attempts++
			cancel()
			return 0, errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})

	t.Run("permanent error is unwrapped", func(t *testing.T) {
		boom := errors.New("boom")
		attempts := 0
		_, err := retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			attempts++
			return 0, &permanentError{boom}
		})
		assert.Equal(t, boom, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("success after failures", func(t *testing.T) {
		attempts := 0
		got, err := retryWithBackoff(context.Background(), fastRetry(), func() (string, error) {
			attempts++
			if attempts < 2 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	})
}
