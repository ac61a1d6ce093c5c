package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrDocsDirMissing is returned when the local checkout has no docs directory
var ErrDocsDirMissing = errors.New("docs directory not found")

// skippedDirs are never descended into
var skippedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".next":        true,
	"out":          true,
	"dist":         true,
}

// DirFetcher reads pages from a local checkout. The checkout is used as-is;
// switching branches is left to the caller.
type DirFetcher struct {
	root   string
	source Source
	logger *slog.Logger
}

// NewDirFetcher creates a fetcher over the repository checked out at root
func NewDirFetcher(root string, source Source, logger *slog.Logger) *DirFetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DirFetcher{root: root, source: source.withDefaults(), logger: logger}
}

// Fetch implements Fetcher. The ref is only logged.
func (d *DirFetcher) Fetch(ctx context.Context, ref string) (map[string]string, error) {
	docsDir := filepath.Join(d.root, filepath.FromSlash(d.source.DocsPath))
	info, err := os.Stat(docsDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDocsDirMissing, docsDir)
	}
	d.logger.Info("reading local checkout", "dir", docsDir, "ref", ref)

	files := make(map[string]string)
	err = filepath.WalkDir(docsDir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			if skippedDirs[entry.Name()] && p != docsDir {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		key, ok := d.source.relative(filepath.ToSlash(rel))
		if !ok {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		files[key] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, docsDir)
	}
	return files, nil
}
