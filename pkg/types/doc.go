// Package types provides shared type definitions for the docsearch MCP server.
//
// This package defines the domain types passed between the ingestion,
// indexing and search components: normalized documents, passages and search
// results, together with the error taxonomy every component reports through.
//
// # Core Types
//
// NormalizedDocument is one source file after markup normalization:
//
//	doc := types.NormalizedDocument{
//	    RelativePath: "guides/routing.md",
//	    Content:      markdown,
//	    Version:      "v53",
//	}
//
// Passage is a bounded excerpt of a document prepared for embedding:
//
//	p := types.Passage{
//	    SectionLabel: "## Dynamic routes",
//	    Content:      text,
//	    ChunkIndex:   0,
//	    RelativePath: "guides/routing.md",
//	    Version:      "v53",
//	}
//
// Passages are never persisted on their own. They exist only while a vector
// index is being built.
//
// # Errors
//
// Validation failures are reported with sentinel errors (ErrEmptyQuery,
// ErrEmptyInput, ErrNoPassages) or small struct types carrying the offending
// value (InvalidVersionFormatError, VersionUnavailableError). Infrastructure
// failures wrap their cause (IndexLoadError, IndexPersistError, ConfigError)
// so callers can use errors.Is and errors.As:
//
//	var unavailable *types.VersionUnavailableError
//	if errors.As(err, &unavailable) {
//	    fmt.Println(unavailable.Available)
//	}
//
// # Search Results
//
// SearchResult carries passage content, display metadata and a similarity
// score rounded to three decimals. Filtering by score happens before
// rounding.
package types
