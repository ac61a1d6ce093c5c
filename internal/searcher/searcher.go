package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/docsearch-mcp/internal/layout"
	"github.com/dshills/docsearch-mcp/internal/storage"
	"github.com/dshills/docsearch-mcp/internal/version"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// Search defaults and limits
const (
	DefaultMaxResults     = 5
	MinMaxResults         = 1
	MaxMaxResults         = 10
	DefaultScoreThreshold = 0.0
)

// ErrInvalidOptions is returned for out-of-range search options
var ErrInvalidOptions = errors.New("invalid search options")

// Options tunes a single search. Zero values select the defaults.
type Options struct {
	MaxResults     int     // 1..10, default 5
	ScoreThreshold float64 // 0..1, default 0
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results  []types.SearchResult
	Version  string
	Duration time.Duration
	Loaded   bool // The version's index was loaded by this request
}

// resident is the index currently held in memory. It is never mutated;
// switching versions swaps the pointer to a new value.
type resident struct {
	version string
	handle  storage.Handle
}

// Searcher answers queries against one resident vector index at a time.
// A request for a different version replaces the resident index; queries
// already running keep the handle they started with.
type Searcher struct {
	layout   *layout.Layout
	resolver *version.Resolver
	index    storage.VectorIndex
	logger   *slog.Logger

	current atomic.Pointer[resident]
	loads   singleflight.Group
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSearcher creates a new Searcher reading indexes from l
func NewSearcher(l *layout.Layout, index storage.VectorIndex, opts ...Option) *Searcher {
	s := &Searcher{
		layout:   l,
		resolver: version.NewResolver(l),
		index:    index,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search validates the request, makes the requested version resident and
// returns passages scoring at least opts.ScoreThreshold, best first.
func (s *Searcher) Search(ctx context.Context, query, versionToken string, opts Options) (*SearchResponse, error) {
	startTime := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.ErrEmptyQuery
	}
	resolved, err := s.resolver.Resolve(versionToken)
	if err != nil {
		return nil, err
	}
	if err := normalizeOptions(&opts); err != nil {
		return nil, err
	}
	if !s.layout.HasVectorIndex(resolved.Canonical) {
		available, _ := s.resolver.ListAvailable()
		return nil, &types.VersionUnavailableError{
			Version:   resolved.Canonical,
			Available: available,
			Message:   s.resolver.DescribeMissing(resolved.Canonical),
		}
	}

	handle, loaded, err := s.acquire(ctx, resolved.Canonical)
	if err != nil {
		return nil, err
	}

	scored, err := handle.QueryTopK(ctx, query, opts.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("query %s index: %w", resolved.Canonical, err)
	}

	results := make([]types.SearchResult, 0, len(scored))
	for _, sp := range scored {
		// Full precision; rounding is for display only
		if sp.Score < opts.ScoreThreshold {
			continue
		}
		results = append(results, types.NewSearchResult(sp))
	}

	resp := &SearchResponse{
		Results:  results,
		Version:  resolved.Canonical,
		Duration: time.Since(startTime),
		Loaded:   loaded,
	}
	s.logger.Debug("search",
		"version", resp.Version,
		"results", len(results),
		"loaded", loaded,
		"duration", resp.Duration,
	)
	return resp, nil
}

// acquire returns the handle for v, loading it if another version (or none)
// is resident. Concurrent loads of the same version share one read, which
// runs detached from any single caller's cancellation; a caller that gives
// up returns its context error while the others keep waiting.
func (s *Searcher) acquire(ctx context.Context, v string) (storage.Handle, bool, error) {
	if r := s.current.Load(); r != nil && r.version == v {
		return r.handle, false, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(v, func() (interface{}, error) {
		if r := s.current.Load(); r != nil && r.version == v {
			return r.handle, nil
		}
		path := s.layout.VectorDir(v)
		h, err := s.index.Load(loadCtx, path)
		if err != nil {
			return nil, &types.IndexLoadError{Version: v, Path: path, Err: err}
		}
		r := &resident{version: v, handle: h}
		if prev := s.current.Swap(r); prev != nil {
			s.logger.Info("replaced resident index", "previous", prev.version, "version", v)
		}
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(storage.Handle), true, nil
	}
}

// Resident returns the version currently held in memory, or "" when none is.
func (s *Searcher) Resident() string {
	if r := s.current.Load(); r != nil {
		return r.version
	}
	return ""
}

// ListAvailableVersions returns versions with a vector index on disk,
// latest first.
func (s *Searcher) ListAvailableVersions() ([]string, error) {
	return s.resolver.ListAvailable()
}

func normalizeOptions(opts *Options) error {
	if opts.MaxResults == 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.MaxResults < MinMaxResults || opts.MaxResults > MaxMaxResults {
		return fmt.Errorf("%w: max results must be between %d and %d, got %d",
			ErrInvalidOptions, MinMaxResults, MaxMaxResults, opts.MaxResults)
	}
	if math.IsNaN(opts.ScoreThreshold) || opts.ScoreThreshold < 0 || opts.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score threshold must be between 0 and 1, got %v",
			ErrInvalidOptions, opts.ScoreThreshold)
	}
	return nil
}
