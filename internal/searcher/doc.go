// Package searcher answers semantic queries against versioned documentation.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(layout, storage.NewSQLiteIndex(emb))
//
//	resp, err := s.Search(ctx, "configure deep links", "v53", searcher.Options{
//	    MaxResults:     5,
//	    ScoreThreshold: 0.3,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("%.3f %s\n", r.Score, r.Metadata.RelativePath)
//	}
//
// # Validation
//
// Requests are checked in a fixed order, and nothing is loaded until all
// checks pass:
//
//  1. blank query: types.ErrEmptyQuery
//  2. malformed version: *types.InvalidVersionFormatError
//  3. out-of-range options: ErrInvalidOptions
//  4. version without an index on disk: *types.VersionUnavailableError,
//     whose message lists the versions that are available
//
// # Resident Index
//
// At most one version's index is held in memory. Searching the resident
// version reuses it; searching another version loads that index completely
// and then swaps it in atomically. A query that is already running keeps
// the handle it captured, so a swap never disturbs it. Alternating between
// two versions reloads on every request.
//
// Load failures are returned as *types.IndexLoadError and are not cached;
// the next request tries again.
//
// # Scores
//
// Results below the threshold are dropped using the raw similarity. The
// score shown in each result is rounded to three decimals.
package searcher
