package export

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/brogergvhs/noveld/internal/book"
)

// WriteHTML writes b as one self-contained document with every image
// inlined as a data URI.
func WriteHTML(w io.Writer, b *book.Bundle) error {
	var sb strings.Builder

	title := html.EscapeString(bundleTitle(b))

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"zh-CN\">\n<head>\n<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n<style>%s</style>\n</head>\n<body>\n", title, htmlStylesheet)

	fmt.Fprintf(&sb, "<h1>%s</h1>\n", title)
	if b.Meta.Author != "" {
		fmt.Fprintf(&sb, "<div class=\"meta-info\">Author: %s</div>\n", html.EscapeString(b.Meta.Author))
	}
	if c := b.Meta.Cover; c != nil {
		fmt.Fprintf(&sb, "<div class=\"cover-img\"><img src=\"%s\" alt=\"Cover\"></div>\n", dataURI(c.MediaType, c.Data))
	}

	sb.WriteString("<div class=\"toc\"><h2>Contents</h2><ul>\n")
	for i, ch := range b.Chapters {
		fmt.Fprintf(&sb, "<li><a href=\"#chap%d\">%s</a></li>\n", i, html.EscapeString(chapterTitle(ch)))
	}
	sb.WriteString("</ul></div>\n")

	for i, ch := range b.Chapters {
		body := ch.Content
		if strings.Contains(body, "<") {
			body = sanitize(body)
		} else {
			body = textToParagraphs(body)
		}

		fmt.Fprintf(&sb, "<div id=\"chap%d\" class=\"chapter\">\n<h2>%s</h2>\n<div class=\"content\">%s</div>\n</div>\n",
			i, html.EscapeString(chapterTitle(ch)), inlineImages(body, ch.Images))
	}

	sb.WriteString("</body>\n</html>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func bundleTitle(b *book.Bundle) string {
	if b.Meta.RawTitle != "" {
		return b.Meta.RawTitle
	}
	if b.Meta.Title != "" {
		return b.Meta.Title
	}
	return "Untitled"
}

const htmlStylesheet = `
body { font-family: sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; line-height: 1.6; color: #333; background: #f9f9f9; }
img { max-width: 100%; height: auto; display: block; margin: 10px auto; }
.chapter { margin-bottom: 50px; background: #fff; padding: 20px; border-radius: 8px; page-break-after: always; }
.toc { background: #fff; padding: 20px; border-radius: 8px; margin-bottom: 20px; }
.toc ul { list-style-type: none; padding: 0; margin: 0; }
.toc li { margin: 5px 0; border-bottom: 1px dashed #eee; }
.toc a { text-decoration: none; color: #0366d6; display: block; padding: 5px 0; }
.cover-img { text-align: center; margin-bottom: 20px; }
.meta-info { font-size: 0.9em; color: #666; margin-bottom: 20px; white-space: pre-wrap; }
`
