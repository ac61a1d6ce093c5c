// Package layout defines the on-disk hierarchy for versioned documentation
// data and the existence probes used to decide whether a stage can be
// skipped.
//
//	{root}/{version}/normalized/**   normalized markdown, mirrored paths
//	{root}/{version}/vector/         persisted vector index
//
// Both tiers are written into a sibling ".tmp" staging directory and renamed
// into place once complete, so a probe never sees a partial tier.
//
// A version is available iff its vector directory exists. Caches are
// coarse: there is no per-file staleness check and invalidation means
// deleting the directory.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	normalizedDirName = "normalized"
	vectorDirName     = "vector"
	tempSuffix        = ".tmp"

	// NormalizedExt is the extension of cached normalized documents.
	NormalizedExt = ".md"
)

// Layout resolves paths under a storage root.
type Layout struct {
	root string
}

// New creates a Layout rooted at root.
func New(root string) *Layout {
	return &Layout{root: filepath.Clean(root)}
}

// Root returns the storage root.
func (l *Layout) Root() string { return l.root }

// VersionDir returns {root}/{version}.
func (l *Layout) VersionDir(version string) string {
	return filepath.Join(l.root, version)
}

// NormalizedDir returns {root}/{version}/normalized.
func (l *Layout) NormalizedDir(version string) string {
	return filepath.Join(l.root, version, normalizedDirName)
}

// NormalizedTempDir returns the staging directory normalized documents are
// written to before CommitNormalized moves them into place.
func (l *Layout) NormalizedTempDir(version string) string {
	return l.NormalizedDir(version) + tempSuffix
}

// VectorDir returns {root}/{version}/vector.
func (l *Layout) VectorDir(version string) string {
	return filepath.Join(l.root, version, vectorDirName)
}

// VectorTempDir returns the staging directory an index is written to before
// it is renamed into place. It never passes the availability probe.
func (l *Layout) VectorTempDir(version string) string {
	return l.VectorDir(version) + tempSuffix
}

// HasNormalizedCache reports whether the normalized directory exists and is
// non-empty.
func (l *Layout) HasNormalizedCache(version string) bool {
	entries, err := os.ReadDir(l.NormalizedDir(version))
	return err == nil && len(entries) > 0
}

// HasVectorIndex reports whether the vector directory exists.
func (l *Layout) HasVectorIndex(version string) bool {
	info, err := os.Stat(l.VectorDir(version))
	return err == nil && info.IsDir()
}

// EnsureDir creates dir and its parents. It is idempotent.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// VersionDirs lists the names of the directories directly under root. A
// missing root yields an empty list.
func (l *Layout) VersionDirs() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// WriteNormalized stores content at normalized/{relPath}, creating parent
// directories on demand.
func (l *Layout) WriteNormalized(version, relPath, content string) error {
	return writeFile(l.NormalizedDir(version), relPath, content)
}

// StageNormalized is WriteNormalized into the staging directory.
func (l *Layout) StageNormalized(version, relPath, content string) error {
	return writeFile(l.NormalizedTempDir(version), relPath, content)
}

// CommitNormalized replaces the normalized cache with the staged documents.
func (l *Layout) CommitNormalized(version string) error {
	tmp := l.NormalizedTempDir(version)
	final := l.NormalizedDir(version)
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("nothing staged for %s: %w", version, err)
	}
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("remove previous normalized cache: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename normalized cache into place: %w", err)
	}
	return nil
}

// AbortNormalized discards the staged documents. The committed cache is left
// untouched.
func (l *Layout) AbortNormalized(version string) error {
	return os.RemoveAll(l.NormalizedTempDir(version))
}

func writeFile(dir, relPath, content string) error {
	path := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	return nil
}

// ReadNormalized loads every cached document for version, keyed by its
// slash-separated path relative to the normalized directory.
func (l *Layout) ReadNormalized(version string) (map[string]string, error) {
	dir := l.NormalizedDir(version)
	docs := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), NormalizedExt) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		docs[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read normalized cache for %s: %w", version, err)
	}
	return docs, nil
}

// SortedKeys returns the keys of docs in lexical order.
func SortedKeys(docs map[string]string) []string {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
