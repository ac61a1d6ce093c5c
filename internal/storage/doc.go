// Package storage persists per-version vector indexes in SQLite and answers
// similarity queries against them in memory.
//
// # File Format
//
// Each version's vector directory holds one database, index.db:
//   - index_meta: provider, model, dimension and passage count (one row)
//   - passages: passage text, location and metadata, keyed by UUID
//   - embeddings: little-endian float32 vectors, one per passage
//   - schema_version: applied migrations
//
// Content hashes (xxhash) are checked on load so a damaged file fails
// loudly instead of returning wrong passages.
//
// # Basic Usage
//
//	idx := storage.NewSQLiteIndex(emb)
//
//	h, err := idx.Build(ctx, passages)
//	if err != nil {
//	    return err
//	}
//	if err := idx.Save(ctx, h, tmpDir); err != nil {
//	    return err
//	}
//
//	loaded, err := idx.Load(ctx, vectorDir)
//	results, err := loaded.QueryTopK(ctx, "configure deep links", 5)
//
// # Search
//
// Queries are exact: every passage vector is scored by cosine similarity
// against the query embedding and the top k are returned in descending
// order. Documentation trees are small enough that a scan beats the cost of
// maintaining an approximate index.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
package storage
