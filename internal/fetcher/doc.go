// Package fetcher supplies raw documentation pages for a source ref.
//
// Two implementations exist:
//   - GitHubFetcher lists the repository tree once and downloads every page
//     blob in parallel (errgroup, bounded by WithConcurrency) behind a
//     token-bucket rate limiter. GITHUB_TOKEN, when set, is sent through an
//     oauth2 static token source.
//   - DirFetcher reads a local checkout, skipping build and dependency
//     directories.
//
// Only files under Source.DocsPath with Source.Extension are returned, keyed
// by their path relative to DocsPath. Per-SDK copies of reference pages
// (versions/v51. through versions/v53.) are skipped.
//
// FetchWithFallback retries with version.DefaultRef when a versioned ref
// does not exist, mirroring how older SDK branches are sometimes missing.
package fetcher
