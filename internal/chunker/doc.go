// Package chunker divides normalized markdown documents into passages for
// embedding and search.
//
// Passages are bounded by a token budget (2000 tokens by default) and cut at
// heading boundaries where possible, so that a passage usually covers one or
// more whole sections of a page.
//
// # Basic Usage
//
//	c := chunker.New()
//	passages, err := c.Chunk(doc, "Routing")
//	if errors.Is(err, chunker.ErrEmptyDocument) {
//	    // skip this document
//	}
//
//	for _, p := range passages {
//	    fmt.Printf("%d %q: %d tokens\n", p.ChunkIndex, p.SectionLabel, p.TokenCount)
//	}
//
// # Chunking Strategy
//
// Splitting runs an ordered chain of Splitter strategies and commits to the
// first one that succeeds:
//   - StructuralSplitter: partitions at markdown headings outside fenced
//     code and greedily packs consecutive sections. A section larger than
//     the budget is split by paragraph, then sentence, then raw token
//     window, and every continuation piece starts with trailing context
//     (200 tokens by default) from the piece before it.
//   - WindowSplitter: fixed token windows with the same overlap. Used when
//     a document has no headings or an unterminated code fence.
//
// A document that fits the budget becomes exactly one passage equal to its
// trimmed content.
//
// # Token Estimation
//
// Tokens are estimated as runes/4 rounded up (EstimateTokenCount). The same
// function is used for budget checks and for Passage.TokenCount, so
// chunking the same input is deterministic.
//
// # Section Labels
//
// A passage is labelled with the text of its first heading. Passages
// without a heading get "{title} (Part n)", where n is the 1-based position
// of the passage within its document.
package chunker
