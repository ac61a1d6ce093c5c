package embedder

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	assert.Equal(t, ComputeHash("hello world"), ComputeHash("hello world"))
	assert.NotEqual(t, ComputeHash("hello"), ComputeHash("world"))
}

func TestValidateTexts(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr bool
	}{
		{"valid", []string{"a", "b"}, false},
		{"empty batch", nil, true},
		{"empty entry", []string{"a", ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTexts(tt.texts)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := NewCache(3)

		_, ok := cache.Get("missing")
		assert.False(t, ok)

		cache.Set("query", []float32{1, 2, 3})
		got, ok := cache.Get("query")
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2, 3}, got)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("returns copies", func(t *testing.T) {
		cache := NewCache(3)
		v := []float32{1, 2}
		cache.Set("q", v)
		v[0] = 99

		got, _ := cache.Get("q")
		got[1] = 42

		again, _ := cache.Get("q")
		assert.Equal(t, []float32{1, 2}, again)
	})

	t.Run("eviction on capacity", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", []float32{1})
		cache.Set("b", []float32{2})
		cache.Set("c", []float32{3})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("a")
		assert.False(t, ok, "least recently used entry should be evicted")
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("a", []float32{1})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("nil cache is a no-op", func(t *testing.T) {
		var cache *Cache
		cache.Set("a", []float32{1})
		_, ok := cache.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(100)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					key := fmt.Sprintf("text-%d-%d", id, j)
					cache.Set(key, []float32{float32(id), float32(j)})
					cache.Get(key)
				}
			}(i)
		}
		wg.Wait()
		assert.Greater(t, cache.Size(), 0)
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider()

	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, LocalModel, p.Model())
	assert.Equal(t, LocalDimension, p.Dimension())
	require.NoError(t, p.Close())

	t.Run("deterministic unit vectors", func(t *testing.T) {
		a, err := p.EmbedQuery(ctx, "Configure deep linking")
		require.NoError(t, err)
		b, err := p.EmbedQuery(ctx, "Configure deep linking")
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.Len(t, a, LocalDimension)
		assert.InDelta(t, 1.0, norm(a), 1e-5)
	})

	t.Run("case and punctuation insensitive", func(t *testing.T) {
		a, _ := p.EmbedQuery(ctx, "Deep linking!")
		b, _ := p.EmbedQuery(ctx, "deep, LINKING")
		assert.Equal(t, a, b)
	})

	t.Run("shared vocabulary scores higher", func(t *testing.T) {
		docs, err := p.EmbedDocuments(ctx, []string{
			"Set up push notifications with the notifications module",
			"Camera permissions and taking photos",
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)

		q, err := p.EmbedQuery(ctx, "push notifications")
		require.NoError(t, err)
		assert.Greater(t, dot(q, docs[0]), dot(q, docs[1]))
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := p.EmbedQuery(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyText)

		_, err = p.EmbedDocuments(ctx, nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.EmbedDocuments(cctx, []string{"a"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNormalizeVector(t *testing.T) {
	got := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
