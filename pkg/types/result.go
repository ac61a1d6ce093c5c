package types

import "math"

// SearchResult represents a single search result with relevance information
type SearchResult struct {
	Content  string
	Metadata ResultMetadata
	Score    float64 // Rounded to three decimals for display
}

// ResultMetadata identifies where a result came from
type ResultMetadata struct {
	RelativePath string
	Title        string // Empty when the document has no title
	Version      string
}

// NewSearchResult shapes a scored passage for display.
func NewSearchResult(sp ScoredPassage) SearchResult {
	return SearchResult{
		Content: sp.Passage.Content,
		Metadata: ResultMetadata{
			RelativePath: sp.Passage.RelativePath,
			Title:        sp.Passage.Title,
			Version:      sp.Passage.Version,
		},
		Score: RoundScore(sp.Score),
	}
}

// RoundScore rounds a similarity score to three decimals.
func RoundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Content == "" {
		return ErrEmptyContent
	}
	if sr.Metadata.RelativePath == "" {
		return ErrMissingPath
	}
	return nil
}
