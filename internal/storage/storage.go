package storage

import (
	"context"
	"errors"

	"github.com/dshills/docsearch-mcp/pkg/types"
)

// IndexFileName is the database file inside a version's vector directory.
const IndexFileName = "index.db"

var (
	// ErrIndexMissing is returned when a vector directory holds no index file
	ErrIndexMissing = errors.New("index file not found")
	// ErrIndexCorrupt is returned when stored rows fail validation
	ErrIndexCorrupt = errors.New("index is corrupt")
	// ErrEmbedderMismatch is returned when an index was built with a
	// different embedding provider or model than the one loading it
	ErrEmbedderMismatch = errors.New("index was built with a different embedder")
	// ErrForeignHandle is returned when Save receives a handle it did not build
	ErrForeignHandle = errors.New("handle was not built by this index")
)

// Handle is a queryable, in-memory vector index for one version.
type Handle interface {
	// QueryTopK returns at most k passages ordered by descending similarity
	QueryTopK(ctx context.Context, query string, k int) ([]types.ScoredPassage, error)

	// Len returns the number of indexed passages
	Len() int
}

// VectorIndex builds, persists and loads vector indexes. Build works in
// memory; Save writes everything needed to answer queries later into dir;
// Load reverses Save.
type VectorIndex interface {
	Build(ctx context.Context, passages []types.Passage) (Handle, error)
	Save(ctx context.Context, h Handle, dir string) error
	Load(ctx context.Context, dir string) (Handle, error)
}

// Meta describes how an index was built.
type Meta struct {
	Provider  string
	Model     string
	Dimension int
	Count     int
}
