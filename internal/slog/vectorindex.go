// Package slog decorates domain interfaces with structured logging.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// Ensure LoggingVectorIndex implements storage.VectorIndex.
var _ storage.VectorIndex = (*LoggingVectorIndex)(nil)

// LoggingVectorIndex wraps a VectorIndex with timing and size logging.
type LoggingVectorIndex struct {
	next   storage.VectorIndex
	logger *slog.Logger
}

// NewLoggingVectorIndex creates a new LoggingVectorIndex.
func NewLoggingVectorIndex(next storage.VectorIndex, logger *slog.Logger) *LoggingVectorIndex {
	return &LoggingVectorIndex{next: next, logger: logger}
}

// Build delegates to the wrapped index and logs the passage count.
func (v *LoggingVectorIndex) Build(ctx context.Context, passages []types.Passage) (storage.Handle, error) {
	begin := time.Now()
	h, err := v.next.Build(ctx, passages)
	if err != nil {
		v.logger.Error("vector index build failed",
			"passages", len(passages),
			"duration", time.Since(begin),
			"error", err,
		)
		return nil, err
	}
	v.logger.Info("vector index built",
		"passages", len(passages),
		"duration", time.Since(begin),
	)
	return h, nil
}

// Save delegates to the wrapped index and logs the target directory.
func (v *LoggingVectorIndex) Save(ctx context.Context, h storage.Handle, dir string) error {
	begin := time.Now()
	err := v.next.Save(ctx, h, dir)
	if err != nil {
		v.logger.Error("vector index save failed",
			"dir", dir,
			"duration", time.Since(begin),
			"error", err,
		)
		return err
	}
	v.logger.Debug("vector index saved",
		"dir", dir,
		"duration", time.Since(begin),
	)
	return nil
}

// Load delegates to the wrapped index and logs how many passages were read.
func (v *LoggingVectorIndex) Load(ctx context.Context, dir string) (storage.Handle, error) {
	begin := time.Now()
	h, err := v.next.Load(ctx, dir)
	if err != nil {
		v.logger.Warn("vector index load failed",
			"dir", dir,
			"duration", time.Since(begin),
			"error", err,
		)
		return nil, err
	}
	v.logger.Info("vector index loaded",
		"dir", dir,
		"passages", h.Len(),
		"duration", time.Since(begin),
	)
	return h, nil
}
