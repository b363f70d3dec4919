package main

import (
	"bytes"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

// htmlSkeleton wraps goldmark's fragment output in a minimal document
// so selectors like "body a" have something to anchor on.
const htmlSkeleton = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
</head>
<body>
%s</body>
</html>
`

// markdownConverter renders Markdown input to HTML so the pipeline can
// query and edit rendered documents.
type markdownConverter struct {
	md goldmark.Markdown
}

// newMarkdownConverter creates a converter with GFM extensions and
// inline-styled syntax highlighting. Raw HTML in the source passes
// through: hq is an editing tool, not a sanitizer.
func newMarkdownConverter() *markdownConverter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(false),
				),
			),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
	return &markdownConverter{md: md}
}

// ToHTML converts Markdown content to a standalone HTML document.
func (c *markdownConverter) ToHTML(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(content, &buf); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	return []byte(fmt.Sprintf(htmlSkeleton, buf.String())), nil
}
