package fetcher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultConcurrency is the number of blobs downloaded in parallel
	DefaultConcurrency = 10

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond keeps unauthenticated runs under GitHub's limits
	DefaultRequestsPerSecond = 20
)

// GitHubFetcher downloads pages through the GitHub Git Data API: one
// recursive tree listing, then one blob request per page.
type GitHubFetcher struct {
	gh          *gh.Client
	source      Source
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// GitHubOption configures a GitHubFetcher
type GitHubOption func(*GitHubFetcher)

// WithSource selects the repository and docs directory
func WithSource(s Source) GitHubOption {
	return func(f *GitHubFetcher) { f.source = s.withDefaults() }
}

// WithConcurrency bounds parallel blob downloads
func WithConcurrency(n int) GitHubOption {
	return func(f *GitHubFetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithRateLimit caps API requests per second; zero or less disables the limit
func WithRateLimit(rps float64) GitHubOption {
	return func(f *GitHubFetcher) {
		if rps <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithBaseURL points the client at another API root (GitHub Enterprise or a test server)
func WithBaseURL(raw string) GitHubOption {
	return func(f *GitHubFetcher) {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		if u, err := url.Parse(raw); err == nil {
			f.gh.BaseURL = u
		}
	}
}

// WithGitHubLogger sets the logger
func WithGitHubLogger(l *slog.Logger) GitHubOption {
	return func(f *GitHubFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewGitHubFetcher creates a fetcher. An empty token makes unauthenticated
// requests, which GitHub rate limits heavily.
func NewGitHubFetcher(ctx context.Context, token string, opts ...GitHubOption) *GitHubFetcher {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = DefaultTimeout

	f := &GitHubFetcher{
		gh:          gh.NewClient(httpClient),
		source:      DefaultSource,
		concurrency: DefaultConcurrency,
		limiter:     rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher
func (f *GitHubFetcher) Fetch(ctx context.Context, ref string) (map[string]string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	tree, _, err := f.gh.Git.GetTree(ctx, f.source.Owner, f.source.Repo, ref, true)
	if err != nil {
		return nil, f.treeError(err, ref)
	}
	if tree.GetTruncated() {
		f.logger.Warn("repository tree truncated; some pages may be missing", "ref", ref)
	}

	type page struct{ rel, sha string }
	var pages []page
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if rel, ok := f.source.relative(entry.GetPath()); ok {
			pages = append(pages, page{rel: rel, sha: entry.GetSHA()})
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s/%s@%s under %s", ErrNoDocuments, f.source.Owner, f.source.Repo, ref, f.source.DocsPath)
	}
	f.logger.Info("downloading pages", "ref", ref, "pages", len(pages), "concurrency", f.concurrency)

	var mu sync.Mutex
	files := make(map[string]string, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, p := range pages {
		g.Go(func() error {
			content, err := f.blob(gctx, p.sha)
			if err != nil {
				return fmt.Errorf("%s: %w", p.rel, err)
			}
			mu.Lock()
			files[p.rel] = content
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (f *GitHubFetcher) blob(ctx context.Context, sha string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	blob, _, err := f.gh.Git.GetBlob(ctx, f.source.Owner, f.source.Repo, sha)
	if err != nil {
		// A missing blob is a broken tree, not a missing ref
		return "", fmt.Errorf("get blob %s: %w", sha, err)
	}

	if blob.GetEncoding() == "base64" {
		// GitHub wraps base64 content at 60 columns
		raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.GetContent(), "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode blob %s: %w", sha, err)
		}
		return string(raw), nil
	}
	return blob.GetContent(), nil
}

// treeError maps a 404 on the tree lookup to ErrRefNotFound
func (f *GitHubFetcher) treeError(err error, ref string) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s/%s@%s", ErrRefNotFound, f.source.Owner, f.source.Repo, ref)
	}
	return fmt.Errorf("get tree: %w", err)
}
