package mock

import (
	"context"

	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

var (
	_ storage.VectorIndex = (*VectorIndex)(nil)
	_ storage.Handle      = (*Handle)(nil)
)

// VectorIndex is a mock implementation of storage.VectorIndex.
type VectorIndex struct {
	BuildFn func(ctx context.Context, passages []types.Passage) (storage.Handle, error)
	SaveFn  func(ctx context.Context, h storage.Handle, dir string) error
	LoadFn  func(ctx context.Context, dir string) (storage.Handle, error)
}

func (v *VectorIndex) Build(ctx context.Context, passages []types.Passage) (storage.Handle, error) {
	return v.BuildFn(ctx, passages)
}

func (v *VectorIndex) Save(ctx context.Context, h storage.Handle, dir string) error {
	return v.SaveFn(ctx, h, dir)
}

func (v *VectorIndex) Load(ctx context.Context, dir string) (storage.Handle, error) {
	return v.LoadFn(ctx, dir)
}

// Handle is a mock implementation of storage.Handle.
type Handle struct {
	QueryTopKFn func(ctx context.Context, query string, k int) ([]types.ScoredPassage, error)
	LenFn       func() int
}

func (h *Handle) QueryTopK(ctx context.Context, query string, k int) ([]types.ScoredPassage, error) {
	return h.QueryTopKFn(ctx, query, k)
}

func (h *Handle) Len() int {
	if h.LenFn == nil {
		return 0
	}
	return h.LenFn()
}
