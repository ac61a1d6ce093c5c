package chunker

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrNoStructure means the text has no markdown headings to split on
	ErrNoStructure = errors.New("no markdown headings found")

	// ErrMalformedMarkdown means a fenced code block is never closed, so
	// heading detection cannot be trusted
	ErrMalformedMarkdown = errors.New("unterminated code fence")
)

var (
	fencePattern       = regexp.MustCompile("^ {0,3}(```|~~~)")
	headingLinePattern = regexp.MustCompile(`^#{1,6}[ \t]+\S`)
	paragraphBreak     = regexp.MustCompile(`\n[ \t]*\n`)
	sentenceBreak      = regexp.MustCompile(`[.!?]["')\]]*\s+`)

	// Sub-split levels for an oversized section, coarsest first. Raw
	// windows follow the last level.
	separators = []*regexp.Regexp{paragraphBreak, sentenceBreak}
)

// Span is the byte range [Start, End) of the text being split.
type Span struct {
	Start int
	End   int
}

// Splitter is one strategy in the chunker's fallback chain. TrySplit
// returns spans in order, or an error when the strategy does not apply.
type Splitter interface {
	Name() string
	TrySplit(text string, budget Budget) ([]Span, error)
}

// StructuralSplitter cuts at markdown headings and packs consecutive
// sections up to the budget. Oversized sections are split by paragraph,
// then sentence, then raw window, with overlap on continuation spans.
type StructuralSplitter struct{}

// Name implements Splitter.
func (StructuralSplitter) Name() string { return "structural" }

// TrySplit implements Splitter.
func (StructuralSplitter) TrySplit(text string, budget Budget) ([]Span, error) {
	b := budget.normalize()

	offsets, err := headingOffsets(text)
	if err != nil {
		return nil, err
	}
	if offsets[0] != 0 {
		offsets = append([]int{0}, offsets...)
	}

	sections := make([]Span, 0, len(offsets))
	for i, start := range offsets {
		end := len(text)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		sections = append(sections, Span{Start: start, End: end})
	}

	return pack(text, sections, b.MaxTokens, func(sec Span) []Span {
		return splitOversized(text, sec, b)
	}), nil
}

// WindowSplitter cuts fixed-size token windows with overlap, ignoring
// structure. It always succeeds and never exceeds the budget.
type WindowSplitter struct{}

// Name implements Splitter.
func (WindowSplitter) Name() string { return "window" }

// TrySplit implements Splitter.
func (WindowSplitter) TrySplit(text string, budget Budget) ([]Span, error) {
	b := budget.normalize()
	if text == "" {
		return nil, nil
	}
	return windows(text, Span{Start: 0, End: len(text)}, b.MaxTokens, b.OverlapTokens*CharsPerToken), nil
}

func (b Budget) normalize() Budget {
	if b.MaxTokens <= 0 {
		b.MaxTokens = DefaultMaxTokens
	}
	if b.OverlapTokens < 0 {
		b.OverlapTokens = 0
	}
	if b.OverlapTokens >= b.MaxTokens {
		b.OverlapTokens = b.MaxTokens / 10
	}
	return b
}

// headingOffsets returns the byte offset of every heading line outside
// fenced code blocks.
func headingOffsets(text string) ([]int, error) {
	var offsets []int
	var fence string

	for pos := 0; pos < len(text); {
		line := text[pos:]
		next := len(text)
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
			next = pos + i + 1
		}

		if m := fencePattern.FindStringSubmatch(line); m != nil {
			switch fence {
			case "":
				fence = m[1]
			case m[1]:
				fence = ""
			}
		} else if fence == "" && headingLinePattern.MatchString(line) {
			offsets = append(offsets, pos)
		}
		pos = next
	}

	if fence != "" {
		return nil, ErrMalformedMarkdown
	}
	if len(offsets) == 0 {
		return nil, ErrNoStructure
	}
	return offsets, nil
}

// pack greedily merges consecutive units while the merged span fits in
// budget. Units that do not fit on their own are handed to oversize, and a
// pending span is folded into the first resulting piece when it fits.
func pack(text string, units []Span, budget int, oversize func(Span) []Span) []Span {
	var out []Span
	cur, open := Span{}, false

	for _, u := range units {
		if open && fits(text, cur.Start, u.End, budget) {
			cur.End = u.End
			continue
		}
		if fits(text, u.Start, u.End, budget) {
			if open {
				out = append(out, cur)
			}
			cur, open = u, true
			continue
		}

		pieces := oversize(u)
		if open {
			if len(pieces) > 0 && pieces[0].Start == cur.End && fits(text, cur.Start, pieces[0].End, budget) {
				pieces[0].Start = cur.Start
			} else {
				out = append(out, cur)
			}
			open = false
		}
		out = append(out, pieces...)
	}
	if open {
		out = append(out, cur)
	}
	return out
}

// splitOversized breaks a section larger than the budget into contiguous
// units that leave room for the overlap, then prefixes every unit after the
// first with trailing context from its predecessor.
func splitOversized(text string, sec Span, b Budget) []Span {
	units := subdivide(text, sec, b.MaxTokens-b.OverlapTokens, 0)

	overlapRunes := b.OverlapTokens * CharsPerToken
	out := make([]Span, len(units))
	for i, u := range units {
		if i == 0 || overlapRunes == 0 {
			out[i] = u
			continue
		}
		out[i] = Span{Start: overlapStart(text, units[i-1], overlapRunes), End: u.End}
	}
	return out
}

func subdivide(text string, sp Span, budget, level int) []Span {
	if fits(text, sp.Start, sp.End, budget) {
		return []Span{sp}
	}
	if level >= len(separators) {
		return windows(text, sp, budget, 0)
	}

	units := cutAt(text, sp, separators[level])
	if len(units) < 2 {
		return subdivide(text, sp, budget, level+1)
	}
	return pack(text, units, budget, func(u Span) []Span {
		return subdivide(text, u, budget, level+1)
	})
}

// cutAt splits sp after every match of sep. Separators stay with the
// preceding unit.
func cutAt(text string, sp Span, sep *regexp.Regexp) []Span {
	var units []Span
	start := sp.Start
	for _, m := range sep.FindAllStringIndex(text[sp.Start:sp.End], -1) {
		cut := sp.Start + m[1]
		if cut <= start || cut >= sp.End {
			continue
		}
		units = append(units, Span{Start: start, End: cut})
		start = cut
	}
	return append(units, Span{Start: start, End: sp.End})
}

// windows cuts sp into spans of at most maxTokens tokens. Each span after
// the first starts overlapRunes before the end of its predecessor.
func windows(text string, sp Span, maxTokens, overlapRunes int) []Span {
	maxRunes := maxTokens * CharsPerToken

	var out []Span
	for start := sp.Start; start < sp.End; {
		end := advanceRunes(text, start, sp.End, maxRunes)
		if end < sp.End {
			if cut := wordBreak(text, start, end); cut > start {
				end = cut
			}
		}
		out = append(out, Span{Start: start, End: end})
		if end >= sp.End {
			break
		}

		next := end
		if overlapRunes > 0 {
			next = overlapStart(text, Span{Start: start, End: end}, overlapRunes)
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// overlapStart returns where the last n runes of prev begin, moved forward
// to a word boundary when prev has one in that range.
func overlapStart(text string, prev Span, n int) int {
	start := retreatRunes(text, prev.End, n)
	if start <= prev.Start {
		return prev.Start
	}
	if r, _ := utf8.DecodeLastRuneInString(text[:start]); unicode.IsSpace(r) {
		return start
	}
	if i := strings.IndexFunc(text[start:prev.End], unicode.IsSpace); i >= 0 {
		return start + i
	}
	return start
}

// wordBreak finds a cut point in the second half of [start, end),
// preferring a line break, then any whitespace. It returns -1 if none.
func wordBreak(text string, start, end int) int {
	mid := start + (end-start)/2
	window := text[mid:end]
	if i := strings.LastIndexByte(window, '\n'); i >= 0 {
		return mid + i + 1
	}
	if i := strings.LastIndexFunc(window, unicode.IsSpace); i >= 0 {
		_, size := utf8.DecodeRuneInString(window[i:])
		return mid + i + size
	}
	return -1
}

func fits(text string, start, end, budget int) bool {
	return EstimateTokenCount(text[start:end]) <= budget
}

func advanceRunes(text string, from, limit, n int) int {
	pos := from
	for i := 0; i < n && pos < limit; i++ {
		_, size := utf8.DecodeRuneInString(text[pos:limit])
		pos += size
	}
	return pos
}

func retreatRunes(text string, to, n int) int {
	pos := to
	for i := 0; i < n && pos > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:pos])
		pos -= size
	}
	return pos
}
