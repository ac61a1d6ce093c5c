package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dshills/docsearch-mcp/internal/chunker"
	"github.com/dshills/docsearch-mcp/internal/layout"
	"github.com/dshills/docsearch-mcp/internal/normalizer"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// ErrBuildInProgress is returned when a build is already running on this Builder
var ErrBuildInProgress = errors.New("index build already in progress")

var firstHeading = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t#]*$`)

// TitleExtractor returns a document title, or "" to defer to the next extractor
type TitleExtractor func(content string) string

// DefaultTitleExtractors tries front matter, then the first level-one heading
var DefaultTitleExtractors = []TitleExtractor{
	normalizer.Title,
	FirstHeading,
}

// FirstHeading returns the text of the first "# " heading in content
func FirstHeading(content string) string {
	_, body, err := normalizer.SplitFrontMatter(content)
	if err != nil {
		body = content
	}
	m := firstHeading.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Builder turns normalized documents into a persisted vector index:
// title -> chunk -> build in memory -> save to temp -> rename -> verify
type Builder struct {
	layout  *layout.Layout
	index   storage.VectorIndex
	chunker *chunker.Chunker
	titles  []TitleExtractor
	logger  *slog.Logger
	lock    IndexLock
}

// Option configures a Builder
type Option func(*Builder)

// WithChunker replaces the default chunker
func WithChunker(c *chunker.Chunker) Option {
	return func(b *Builder) {
		if c != nil {
			b.chunker = c
		}
	}
}

// WithTitleExtractors replaces the title extractor chain
func WithTitleExtractors(extractors ...TitleExtractor) Option {
	return func(b *Builder) { b.titles = extractors }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Result summarizes a successful build
type Result struct {
	Handle    storage.Handle
	Documents int
	Passages  int
	Skipped   []string // Relative paths that produced no passages
	Path      string   // Final vector directory
	Duration  time.Duration
}

// New creates a new Builder writing under l
func New(l *layout.Layout, index storage.VectorIndex, opts ...Option) *Builder {
	b := &Builder{
		layout:  l,
		index:   index,
		chunker: chunker.New(),
		titles:  DefaultTitleExtractors,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build chunks docs, builds the vector index in memory and persists it to
// the version's vector directory. Nothing is written until the in-memory
// index is complete, and a failed persist leaves no vector directory behind.
func (b *Builder) Build(ctx context.Context, docs []types.NormalizedDocument, version string) (*Result, error) {
	if len(docs) == 0 {
		return nil, types.ErrEmptyInput
	}
	if !b.lock.TryAcquire() {
		return nil, ErrBuildInProgress
	}
	defer b.lock.Release()

	start := time.Now()
	passages, skipped, err := b.collectPassages(ctx, docs, version)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, types.ErrNoPassages
	}

	handle, err := b.index.Build(ctx, passages)
	if err != nil {
		return nil, fmt.Errorf("build vector index: %w", err)
	}

	path, err := b.persist(ctx, handle, version)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Handle:    handle,
		Documents: len(docs) - len(skipped),
		Passages:  len(passages),
		Skipped:   skipped,
		Path:      path,
		Duration:  time.Since(start),
	}
	b.logger.Info("index built",
		"version", version,
		"documents", result.Documents,
		"passages", result.Passages,
		"skipped", len(skipped),
		"duration", result.Duration,
	)
	return result, nil
}

// collectPassages runs documents through the chunker one at a time.
// Per-document failures are logged and the document is skipped.
func (b *Builder) collectPassages(ctx context.Context, docs []types.NormalizedDocument, version string) ([]types.Passage, []string, error) {
	var passages []types.Passage
	var skipped []string

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		doc.Version = version
		title := b.extractTitle(doc.Content)
		docPassages, strategy, err := b.chunker.ChunkWithStrategy(doc, title)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, chunker.ErrEmptyDocument) {
				level = slog.LevelInfo
			}
			b.logger.Log(ctx, level, "skipping document", "path", doc.RelativePath, "error", err)
			skipped = append(skipped, doc.RelativePath)
			continue
		}

		b.logger.Debug("chunked document",
			"path", doc.RelativePath,
			"strategy", strategy,
			"passages", len(docPassages),
		)
		passages = append(passages, docPassages...)
	}
	return passages, skipped, nil
}

func (b *Builder) extractTitle(content string) string {
	for _, extract := range b.titles {
		if title := extract(content); title != "" {
			return title
		}
	}
	return ""
}

// persist saves into the temp directory, swaps it into place and verifies
// the availability probe sees it.
func (b *Builder) persist(ctx context.Context, handle storage.Handle, version string) (string, error) {
	tmp := b.layout.VectorTempDir(version)
	final := b.layout.VectorDir(version)
	fail := func(err error) (string, error) {
		_ = os.RemoveAll(tmp)
		return "", &types.IndexPersistError{Version: version, Path: final, Err: err}
	}

	// Clear leftovers from an interrupted build
	if err := os.RemoveAll(tmp); err != nil {
		return fail(fmt.Errorf("clear temp directory: %w", err))
	}
	if err := layout.EnsureDir(b.layout.VersionDir(version)); err != nil {
		return fail(err)
	}
	if err := b.index.Save(ctx, handle, tmp); err != nil {
		return fail(fmt.Errorf("save: %w", err))
	}
	if err := os.RemoveAll(final); err != nil {
		return fail(fmt.Errorf("remove previous index: %w", err))
	}
	if err := os.Rename(tmp, final); err != nil {
		return fail(fmt.Errorf("rename into place: %w", err))
	}
	if !b.layout.HasVectorIndex(version) {
		return fail(errors.New("vector directory missing after save"))
	}
	return final, nil
}
