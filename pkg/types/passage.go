package types

// NormalizedDocument is one source file converted to plain markdown.
type NormalizedDocument struct {
	RelativePath string // Normalized path, e.g. "guides/routing.md"
	Content      string
	Version      string
}

// Passage represents a bounded excerpt of a document for embedding and search
type Passage struct {
	// Identification
	RelativePath string
	Version      string
	ChunkIndex   int // 0-based, dense per document

	// Content
	SectionLabel string
	Content      string
	TokenCount   int
	Title        string // Empty when the document has no title

	// Location in the trimmed document content, overlap included
	Start int
	End   int
}

// ValidateContent checks if the passage content is valid
func (p *Passage) ValidateContent() error {
	if p.Content == "" {
		return ErrEmptyContent
	}
	if p.ChunkIndex < 0 {
		return ErrInvalidChunkIndex
	}
	return nil
}

// Validate performs comprehensive validation of the passage
func (p *Passage) Validate() error {
	if err := p.ValidateContent(); err != nil {
		return err
	}
	if p.RelativePath == "" {
		return ErrMissingPath
	}
	return nil
}

// ScoredPassage pairs a passage with its similarity to a query.
type ScoredPassage struct {
	Passage Passage
	Score   float64
}
