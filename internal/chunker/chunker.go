package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/docsearch-mcp/pkg/types"
)

const (
	// DefaultMaxTokens is the maximum token count per passage
	DefaultMaxTokens = 2000

	// DefaultOverlapTokens is the trailing context repeated at the start of
	// a continuation passage
	DefaultOverlapTokens = 200

	// CharsPerToken is the heuristic for estimating tokens (chars/4)
	CharsPerToken = 4

	// DefaultTitle names untitled documents in synthesized section labels
	DefaultTitle = "Document"
)

// ErrEmptyDocument is returned for content that is empty after trimming.
// Callers skip such documents; it is not fatal for a batch.
var ErrEmptyDocument = errors.New("document is empty")

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(\S.*)$`)

// Budget bounds passage size in tokens.
type Budget struct {
	MaxTokens     int
	OverlapTokens int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxTokens sets the per-passage token budget.
func WithMaxTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.budget.MaxTokens = n
		}
	}
}

// WithOverlapTokens sets the continuation overlap in tokens.
func WithOverlapTokens(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.budget.OverlapTokens = n
		}
	}
}

// WithSplitters replaces the splitter chain.
func WithSplitters(s ...Splitter) Option {
	return func(c *Chunker) {
		c.splitters = s
	}
}

// Chunker splits normalized markdown documents into passages
type Chunker struct {
	budget    Budget
	splitters []Splitter
}

// New creates a new Chunker with the structural splitter followed by the
// window fallback.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		budget: Budget{
			MaxTokens:     DefaultMaxTokens,
			OverlapTokens: DefaultOverlapTokens,
		},
		splitters: []Splitter{StructuralSplitter{}, WindowSplitter{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.budget = c.budget.normalize()
	return c
}

// Budget returns the effective token budget.
func (c *Chunker) Budget() Budget {
	return c.budget
}

// Chunk splits doc into passages. Title is used for synthesized section
// labels and copied to every passage; it may be empty.
func (c *Chunker) Chunk(doc types.NormalizedDocument, title string) ([]types.Passage, error) {
	passages, _, err := c.ChunkWithStrategy(doc, title)
	return passages, err
}

// ChunkWithStrategy is Chunk but also reports which splitter produced the
// passages ("single" when the document fits in one passage).
func (c *Chunker) ChunkWithStrategy(doc types.NormalizedDocument, title string) ([]types.Passage, string, error) {
	text := strings.TrimSpace(doc.Content)
	if text == "" {
		return nil, "", fmt.Errorf("%s: %w", doc.RelativePath, ErrEmptyDocument)
	}

	spans, strategy, err := c.split(text)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", doc.RelativePath, err)
	}

	labelTitle := title
	if labelTitle == "" {
		labelTitle = DefaultTitle
	}

	passages := make([]types.Passage, 0, len(spans))
	for _, sp := range spans {
		start, end := trimSpan(text, sp)
		if start >= end {
			continue
		}
		content := text[start:end]
		idx := len(passages)
		passages = append(passages, types.Passage{
			RelativePath: doc.RelativePath,
			Version:      doc.Version,
			ChunkIndex:   idx,
			SectionLabel: SectionLabel(content, labelTitle, idx+1),
			Content:      content,
			TokenCount:   EstimateTokenCount(content),
			Title:        title,
			Start:        start,
			End:          end,
		})
	}

	if len(passages) == 0 {
		return nil, "", fmt.Errorf("%s: %w", doc.RelativePath, ErrEmptyDocument)
	}
	return passages, strategy, nil
}

// split runs the splitter chain and commits to the first success.
func (c *Chunker) split(text string) ([]Span, string, error) {
	if EstimateTokenCount(text) <= c.budget.MaxTokens {
		return []Span{{Start: 0, End: len(text)}}, "single", nil
	}

	var errs []error
	for _, s := range c.splitters {
		spans, err := s.TrySplit(text, c.budget)
		if err == nil && len(spans) > 0 {
			return spans, s.Name(), nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) == 0 {
		return nil, "", errors.New("no splitter produced passages")
	}
	return nil, "", errors.Join(errs...)
}

// SectionLabel returns the text of the first heading line in content, or
// "{title} (Part n)" when there is none.
func SectionLabel(content, title string, n int) string {
	if m := headingPattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return fmt.Sprintf("%s (Part %d)", title, n)
}

// EstimateTokenCount provides a rough token count estimate (chars/4,
// rounded up). It is the only token measure used by this package.
func EstimateTokenCount(text string) int {
	return (utf8.RuneCountInString(text) + CharsPerToken - 1) / CharsPerToken
}

// trimSpan narrows sp so that it excludes leading and trailing whitespace.
func trimSpan(text string, sp Span) (int, int) {
	piece := text[sp.Start:sp.End]
	left := len(piece) - len(strings.TrimLeftFunc(piece, unicode.IsSpace))
	right := len(strings.TrimRightFunc(piece, unicode.IsSpace))
	if right <= left {
		return sp.Start, sp.Start
	}
	return sp.Start + left, sp.Start + right
}
