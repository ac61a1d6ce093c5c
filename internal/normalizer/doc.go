// Package normalizer converts MDX documentation pages into plain markdown.
//
// Conversion is a fixed sequence of rewrites applied outside fenced code
// blocks:
//   - import and export lines are removed
//   - <Terminal cmd={[...]} /> becomes a bash code block
//   - <Tab>, <Step> and <Collapsible> labels become headings
//   - <BoxLink /> becomes a bold title, its description and a link
//   - <CODE>x</CODE> becomes inline code
//   - self-closing JSX components (<Video />) are dropped
//   - wrapping components (<Tab>...</Tab>) are replaced by their children
//   - local links to .mdx pages point at .md, and ./dir/ links at ./dir.md
//   - runs of three or more newlines collapse to one blank line
//
// YAML front matter is parsed with gopkg.in/yaml.v3 and written back in
// front of the converted body, so titles survive normalization.
package normalizer
