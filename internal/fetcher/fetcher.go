package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/dshills/docsearch-mcp/internal/version"
)

var (
	// ErrRefNotFound is returned when the requested branch or tag does not exist
	ErrRefNotFound = errors.New("ref not found")
	// ErrNoDocuments is returned when a ref contains no matching pages
	ErrNoDocuments = errors.New("no documentation pages found")
)

// legacyVersionPages matches per-SDK copies of the reference docs that the
// unversioned tree still carries.
var legacyVersionPages = regexp.MustCompile(`versions/v(51|52|53)\.`)

// Fetcher supplies raw documentation pages for a source ref, keyed by path
// relative to the docs directory.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (map[string]string, error)
}

// Source identifies where documentation pages live.
type Source struct {
	Owner     string
	Repo      string
	DocsPath  string // Directory holding the pages, e.g. "docs/pages"
	Extension string // Page extension, e.g. ".mdx"
}

// DefaultSource is the Expo documentation tree
var DefaultSource = Source{
	Owner:     "expo",
	Repo:      "expo",
	DocsPath:  "docs/pages",
	Extension: ".mdx",
}

// withDefaults fills empty fields from DefaultSource
func (s Source) withDefaults() Source {
	if s.Owner == "" {
		s.Owner = DefaultSource.Owner
	}
	if s.Repo == "" {
		s.Repo = DefaultSource.Repo
	}
	if s.DocsPath == "" {
		s.DocsPath = DefaultSource.DocsPath
	}
	if s.Extension == "" {
		s.Extension = DefaultSource.Extension
	}
	s.DocsPath = strings.Trim(path.Clean(strings.ReplaceAll(s.DocsPath, "\\", "/")), "/")
	return s
}

// relative returns p relative to the docs directory and whether p is a page
// that should be fetched.
func (s Source) relative(p string) (string, bool) {
	prefix := s.DocsPath + "/"
	if !strings.HasPrefix(p, prefix) || !strings.HasSuffix(p, s.Extension) {
		return "", false
	}
	if legacyVersionPages.MatchString(p) {
		return "", false
	}
	return strings.TrimPrefix(p, prefix), true
}

// FetchWithFallback fetches the resolved ref and falls back to
// version.DefaultRef when that ref does not exist. It returns the ref that
// was actually used.
func FetchWithFallback(ctx context.Context, f Fetcher, resolved version.Resolved, logger *slog.Logger) (map[string]string, string, error) {
	files, err := f.Fetch(ctx, resolved.Ref)
	if err == nil {
		return files, resolved.Ref, nil
	}
	if !errors.Is(err, ErrRefNotFound) || resolved.Ref == version.DefaultRef {
		return nil, "", err
	}

	if logger != nil {
		logger.Warn("ref not found, falling back",
			"version", resolved.Canonical,
			"ref", resolved.Ref,
			"fallback", version.DefaultRef,
		)
	}
	files, err = f.Fetch(ctx, version.DefaultRef)
	if err != nil {
		return nil, "", fmt.Errorf("fallback to %s: %w", version.DefaultRef, err)
	}
	return files, version.DefaultRef, nil
}
