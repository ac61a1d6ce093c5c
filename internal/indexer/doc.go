// Package indexer builds and persists the vector index for one
// documentation version.
//
// # Basic Usage
//
//	b := indexer.New(layout, storage.NewSQLiteIndex(emb), indexer.WithLogger(logger))
//
//	res, err := b.Build(ctx, docs, "v53")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("indexed %d passages from %d documents\n", res.Passages, res.Documents)
//
// # Pipeline
//
//  1. Title: front matter title (or heading), else the first "# " heading
//  2. Chunk: each document is chunked in order; empty or unsplittable
//     documents are logged and skipped
//  3. Build: all passages are embedded into an in-memory index
//  4. Persist: the index is saved to vector.tmp, renamed to vector, and the
//     availability probe is checked
//
// Documents are processed sequentially so chunk ordering stays trivially
// correct and the embedding provider sees one batch stream at a time.
//
// # Failure Semantics
//
// Zero documents fail with types.ErrEmptyInput and zero passages with
// types.ErrNoPassages. Any failure after the in-memory build returns a
// *types.IndexPersistError and removes the temporary directory, so a failed
// build never leaves a vector directory that makes the version look
// available.
//
// A Builder runs one build at a time; a second concurrent call returns
// ErrBuildInProgress.
package indexer
