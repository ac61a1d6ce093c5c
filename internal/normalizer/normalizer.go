package normalizer

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SourceExt is the extension of raw documentation pages
	SourceExt = ".mdx"
	// TargetExt is the extension of normalized documents
	TargetExt = ".md"

	frontMatterDelim = "---"
)

var (
	importFromLine = regexp.MustCompile(`(?m)^import\s+.*?from\s+['"][^'"]*['"];?[ \t]*$`)
	importBareLine = regexp.MustCompile(`(?m)^import\s+['"][^'"]*['"];?[ \t]*$`)
	exportLine     = regexp.MustCompile(`(?m)^export\s+.*?;?[ \t]*$`)

	// Components whose attributes carry content are rewritten before the
	// generic removal below
	terminalComponent    = regexp.MustCompile(`<Terminal\s+cmd=\{\[([^\]]*)\]\}\s*/>`)
	quotedString         = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)
	tabComponent         = regexp.MustCompile(`<Tab\s+label=["']([^"']+)["']\s*>`)
	stepComponent        = regexp.MustCompile(`<Step\s+label=["'](\d+)["']\s*>`)
	collapsibleComponent = regexp.MustCompile(`<Collapsible\s+summary=(?:\{<>([^<]+)</>\}|"([^"]+)")\s*>`)
	boxLinkComponent     = regexp.MustCompile(`<BoxLink\s+([^>]*?)/>`)
	boxLinkAttr          = regexp.MustCompile(`(title|description|href)=["']([^"']+)["']`)
	codeComponent        = regexp.MustCompile(`<CODE>([^<]+)</CODE>`)

	// JSX components start with an uppercase letter; HTML tags are kept
	selfClosingComponent = regexp.MustCompile(`<[A-Z][a-zA-Z0-9]*[^>]*/>`)
	openComponent        = regexp.MustCompile(`<([A-Z][a-zA-Z0-9]*)[^>]*>`)
	closeComponent       = regexp.MustCompile(`</[A-Z][a-zA-Z0-9]*>`)

	mdxLink          = regexp.MustCompile(`\]\(([^)]*?)\.mdx([^)]*?)\)`)
	dirLink          = regexp.MustCompile(`\]\(\./([^/#)]+)/\)`)
	dirLinkFragment  = regexp.MustCompile(`\]\(\./([^/#)]+)/([^)]*)\)`)
	excessiveNewline = regexp.MustCompile(`\n{3,}`)
)

// Normalizer converts MDX pages to plain markdown. It is stateless and
// performs no I/O.
type Normalizer struct{}

// New creates a new Normalizer
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize strips MDX syntax from raw, keeping front matter in front of
// the converted body.
func (n *Normalizer) Normalize(raw string) (string, error) {
	fm, body, err := SplitFrontMatter(raw)
	if err != nil {
		return "", err
	}

	markdown := convertBody(body)
	if len(fm) == 0 {
		return markdown, nil
	}

	header, err := renderFrontMatter(fm)
	if err != nil {
		return "", err
	}
	return header + "\n" + markdown, nil
}

func convertBody(body string) string {
	md, fences := maskFences(strings.ReplaceAll(body, "\r\n", "\n"))
	md = importFromLine.ReplaceAllString(md, "")
	md = importBareLine.ReplaceAllString(md, "")
	md = rewriteComponents(md)
	md = selfClosingComponent.ReplaceAllString(md, "")
	md = unwrapComponents(md)
	md = closeComponent.ReplaceAllString(md, "")
	md = exportLine.ReplaceAllString(md, "")
	md = fixLocalLinks(md)
	md = excessiveNewline.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(unmaskFences(md, fences))
}

// rewriteComponents turns components that carry text in their attributes
// into the equivalent markdown: terminal commands become bash blocks, tab,
// step and collapsible labels become headings, box links become a bold
// title with a link and <CODE> becomes inline code. The closing tags are
// left for unwrapComponents.
func rewriteComponents(s string) string {
	s = terminalComponent.ReplaceAllStringFunc(s, func(m string) string {
		list := terminalComponent.FindStringSubmatch(m)[1]
		var cmds []string
		for _, q := range quotedString.FindAllStringSubmatch(list, -1) {
			cmds = append(cmds, q[1]+q[2])
		}
		if len(cmds) == 0 {
			cmds = []string{"# Terminal command"}
		}
		return "```bash\n" + strings.Join(cmds, "\n") + "\n```"
	})
	s = tabComponent.ReplaceAllString(s, "\n#### $1\n\n")
	s = stepComponent.ReplaceAllString(s, "\n### Step $1\n\n")
	s = collapsibleComponent.ReplaceAllString(s, "\n#### $1$2\n\n")
	s = boxLinkComponent.ReplaceAllStringFunc(s, func(m string) string {
		attrs := map[string]string{"href": "#"}
		for _, a := range boxLinkAttr.FindAllStringSubmatch(boxLinkComponent.FindStringSubmatch(m)[1], -1) {
			attrs[a[1]] = a[2]
		}
		return fmt.Sprintf("**%s**\n%s\n[Learn more](%s)", attrs["title"], attrs["description"], attrs["href"])
	})
	return codeComponent.ReplaceAllString(s, "`$1`")
}

// maskFences swaps fenced code blocks for placeholders so code samples
// survive the MDX rewrites untouched.
func maskFences(s string) (string, []string) {
	var out strings.Builder
	var fences []string
	var block strings.Builder
	marker := ""

	for _, line := range strings.SplitAfter(s, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if marker == "" {
			if m := fenceMarker(trimmed); m != "" && len(line)-len(trimmed) <= 3 {
				marker = m
				block.Reset()
				block.WriteString(line)
				continue
			}
			out.WriteString(line)
			continue
		}

		block.WriteString(line)
		if strings.HasPrefix(trimmed, marker) && strings.TrimSpace(strings.TrimLeft(trimmed, marker[:1])) == "" {
			out.WriteString(placeholder(len(fences)))
			if strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
			fences = append(fences, strings.TrimSuffix(block.String(), "\n"))
			marker = ""
		}
	}
	if marker != "" {
		// Unterminated fence runs to the end of the document
		out.WriteString(placeholder(len(fences)))
		fences = append(fences, block.String())
	}
	return out.String(), fences
}

func fenceMarker(line string) string {
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, m) {
			n := len(line) - len(strings.TrimLeft(line, m[:1]))
			return strings.Repeat(m[:1], n)
		}
	}
	return ""
}

func placeholder(i int) string {
	return fmt.Sprintf("\x00fence%d\x00", i)
}

func unmaskFences(s string, fences []string) string {
	for i := len(fences) - 1; i >= 0; i-- {
		s = strings.Replace(s, placeholder(i), fences[i], 1)
	}
	return s
}

// unwrapComponents replaces <Component ...>children</Component> with the
// children. Nested components of the same name unwrap from the outside in.
func unwrapComponents(s string) string {
	for {
		loc := openComponent.FindStringSubmatchIndex(s)
		if loc == nil {
			return s
		}
		name := s[loc[2]:loc[3]]
		closing := "</" + name + ">"
		end := strings.Index(s[loc[1]:], closing)
		if end < 0 {
			// Unbalanced; drop only the opening tag
			s = s[:loc[0]] + s[loc[1]:]
			continue
		}
		children := s[loc[1] : loc[1]+end]
		s = s[:loc[0]] + children + s[loc[1]+end+len(closing):]
	}
}

func fixLocalLinks(s string) string {
	s = mdxLink.ReplaceAllString(s, "]($1.md$2)")
	s = dirLink.ReplaceAllString(s, "](./$1.md)")
	s = dirLinkFragment.ReplaceAllString(s, "](./$1.md$2)")
	return s
}

// SplitFrontMatter separates a leading YAML front matter block from the
// body. Content without front matter returns a nil map and the input
// unchanged.
func SplitFrontMatter(content string) (map[string]interface{}, string, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(content, frontMatterDelim+"\n") && !strings.HasPrefix(content, frontMatterDelim+"\r\n") {
		return nil, content, nil
	}

	rest := content[strings.Index(content, "\n")+1:]
	end := -1
	offset := 0
	for _, line := range strings.SplitAfter(rest, "\n") {
		if strings.TrimRight(line, "\r\n") == frontMatterDelim {
			end = offset
			break
		}
		offset += len(line)
	}
	if end < 0 {
		return nil, content, nil
	}

	block := rest[:end]
	body := rest[end:]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}

	fm := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil, content, fmt.Errorf("parse front matter: %w", err)
	}
	return fm, body, nil
}

func renderFrontMatter(fm map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(frontMatterDelim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("render front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("render front matter: %w", err)
	}
	buf.WriteString(frontMatterDelim + "\n")
	return buf.String(), nil
}

// Title returns the front matter title (or heading) of content, if any.
func Title(content string) string {
	fm, _, err := SplitFrontMatter(content)
	if err != nil || fm == nil {
		return ""
	}
	for _, key := range []string{"title", "heading"} {
		if v, ok := fm[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// NormalizedPath maps a source path to its normalized document path.
func NormalizedPath(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	if strings.HasSuffix(rel, SourceExt) {
		return strings.TrimSuffix(rel, SourceExt) + TargetExt
	}
	return rel
}
