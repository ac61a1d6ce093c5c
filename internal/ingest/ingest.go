package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/docsearch-mcp/internal/fetcher"
	"github.com/dshills/docsearch-mcp/internal/indexer"
	"github.com/dshills/docsearch-mcp/internal/layout"
	"github.com/dshills/docsearch-mcp/internal/normalizer"
	"github.com/dshills/docsearch-mcp/internal/version"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// ErrNothingNormalized is returned when every fetched page failed to normalize
var ErrNothingNormalized = errors.New("no pages could be normalized")

// Normalizer converts one raw page into markdown
type Normalizer interface {
	Normalize(raw string) (string, error)
}

// Report summarizes one Initialize call.
type Report struct {
	Version   string
	Ref       string // Source ref that was fetched; empty when served from cache
	Documents int
	Passages  int
	FromCache bool     // Normalized documents came from disk
	Existing  bool     // Index already present, nothing was done
	Skipped   []string // Pages that failed to normalize or produced no passages
	Duration  time.Duration
}

// Pipeline wires fetching, normalization and indexing for one storage root.
type Pipeline struct {
	layout     *layout.Layout
	resolver   *version.Resolver
	fetcher    fetcher.Fetcher
	normalizer Normalizer
	builder    *indexer.Builder
	logger     *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithNormalizer replaces the default MDX normalizer
func WithNormalizer(n Normalizer) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.normalizer = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline. The builder must write under the same layout.
func New(l *layout.Layout, f fetcher.Fetcher, b *indexer.Builder, opts ...Option) *Pipeline {
	p := &Pipeline{
		layout:     l,
		resolver:   version.NewResolver(l),
		fetcher:    f,
		normalizer: normalizer.New(),
		builder:    b,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize makes token searchable. Without force an existing index is
// kept and reported with Existing set.
func (p *Pipeline) Initialize(ctx context.Context, token string, force bool) (*Report, error) {
	start := time.Now()
	resolved, err := p.resolver.Resolve(token)
	if err != nil {
		return nil, err
	}
	v := resolved.Canonical

	if !force && p.layout.HasVectorIndex(v) {
		p.logger.Info("version already initialized", "version", v)
		return &Report{Version: v, Existing: true, Duration: time.Since(start)}, nil
	}

	docs, ref, skipped, err := p.NormalizeOrLoad(ctx, resolved, force)
	if err != nil {
		return nil, err
	}

	result, err := p.builder.Build(ctx, docs, v)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", v, err)
	}

	report := &Report{
		Version:   v,
		Ref:       ref,
		Documents: result.Documents,
		Passages:  result.Passages,
		FromCache: ref == "",
		Skipped:   append(skipped, result.Skipped...),
		Duration:  time.Since(start),
	}
	p.logger.Info("version initialized",
		"version", v,
		"ref", ref,
		"documents", report.Documents,
		"passages", report.Passages,
		"from_cache", report.FromCache,
		"duration", report.Duration,
	)
	return report, nil
}

// NormalizeOrLoad returns the normalized documents for resolved. A populated
// normalized cache is read back unless refresh is set; otherwise pages are
// fetched, normalized and written to the cache. The returned ref is empty
// when the cache was used.
func (p *Pipeline) NormalizeOrLoad(ctx context.Context, resolved version.Resolved, refresh bool) ([]types.NormalizedDocument, string, []string, error) {
	v := resolved.Canonical
	if !refresh && p.layout.HasNormalizedCache(v) {
		cached, err := p.layout.ReadNormalized(v)
		if err != nil {
			return nil, "", nil, err
		}
		if len(cached) > 0 {
			p.logger.Info("using normalized cache", "version", v, "documents", len(cached))
			return toDocuments(cached, v), "", nil, nil
		}
	}

	raw, ref, err := fetcher.FetchWithFallback(ctx, p.fetcher, resolved, p.logger)
	if err != nil {
		return nil, "", nil, fmt.Errorf("fetch %s: %w", v, err)
	}

	// Staged pages replace the whole cache only once every page is written
	if err := p.layout.AbortNormalized(v); err != nil {
		return nil, "", nil, fmt.Errorf("clear normalized staging: %w", err)
	}
	normalized, skipped, err := p.stage(ctx, raw, v)
	if err != nil {
		_ = p.layout.AbortNormalized(v)
		return nil, "", nil, err
	}
	if err := p.layout.CommitNormalized(v); err != nil {
		_ = p.layout.AbortNormalized(v)
		return nil, "", nil, err
	}

	p.logger.Info("normalized pages", "version", v, "ref", ref, "documents", len(normalized), "skipped", len(skipped))
	return toDocuments(normalized, v), ref, skipped, nil
}

// stage normalizes raw pages in path order into the staging directory.
func (p *Pipeline) stage(ctx context.Context, raw map[string]string, v string) (map[string]string, []string, error) {
	normalized := make(map[string]string, len(raw))
	var skipped []string
	for _, rel := range layout.SortedKeys(raw) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		content, err := p.normalizer.Normalize(raw[rel])
		if err != nil {
			p.logger.Warn("skipping page", "path", rel, "error", err)
			skipped = append(skipped, rel)
			continue
		}
		target := normalizer.NormalizedPath(rel)
		if err := p.layout.StageNormalized(v, target, content); err != nil {
			return nil, nil, err
		}
		normalized[target] = content
	}
	if len(normalized) == 0 {
		return nil, nil, fmt.Errorf("%w: %d pages fetched for %s", ErrNothingNormalized, len(raw), v)
	}
	return normalized, skipped, nil
}

func toDocuments(files map[string]string, v string) []types.NormalizedDocument {
	docs := make([]types.NormalizedDocument, 0, len(files))
	for _, rel := range layout.SortedKeys(files) {
		docs = append(docs, types.NormalizedDocument{RelativePath: rel, Content: files[rel], Version: v})
	}
	return docs
}
