// Package embedder generates vector embeddings for documentation passages
// and search queries.
//
// # Basic Usage
//
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    var cfgErr *types.ConfigError
//	    if errors.As(err, &cfgErr) {
//	        log.Fatalf("set %s", cfgErr.Setting)
//	    }
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vectors, err := emb.EmbedDocuments(ctx, texts)
//	query, err := emb.EmbedQuery(ctx, "how do I configure deep links")
//
// # Providers
//
//   - openai: text-embedding-3-large by default (3072 dimensions)
//   - jina: jina-embeddings-v3 (1024 dimensions)
//   - local: hashed bag-of-words, 384 dimensions, no network
//
// OpenAI and Jina expose the same embeddings API and share APIProvider.
// Provider selection reads DOCSEARCH_EMBEDDING_PROVIDER, then looks for
// OPENAI_API_KEY and JINA_API_KEY. With neither set, openai is chosen and
// construction fails with a *types.ConfigError naming the missing key.
//
// # Batching and Rate Limits
//
// EmbedDocuments sends DefaultBatchSize texts per request, one request at a
// time, throttled by a token bucket (golang.org/x/time/rate). Transient
// failures are retried with exponential backoff; authentication and
// request errors are not.
//
// # Caching
//
// Query embeddings are cached in an LRU keyed by the xxhash of the query
// text. Cached vectors are copied on the way in and out.
package embedder
