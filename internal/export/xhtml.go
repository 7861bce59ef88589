package export

import (
	"encoding/base64"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/brogergvhs/noveld/internal/book"
)

var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("alt", "title", "width", "height").OnElements("img")
	return p
}()

// sanitize strips scripts, handlers and unknown markup from chapter content.
func sanitize(markup string) string {
	return policy.Sanitize(markup)
}

// toXHTML sanitizes markup and renders it as well-formed XHTML: void
// elements self-close, attributes are quoted and entities are resolved.
// Content without any tag is treated as plain text and split into
// paragraphs.
func toXHTML(markup string) string {
	if !strings.Contains(markup, "<") {
		return textToParagraphs(markup)
	}

	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(sanitize(markup)), ctx)
	if err != nil {
		return textToParagraphs(markup)
	}

	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return textToParagraphs(markup)
		}
	}
	return b.String()
}

// textToParagraphs escapes s and wraps blank-line separated blocks in <p>.
func textToParagraphs(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	for _, block := range strings.Split(s, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := strings.Split(block, "\n")
		for i, l := range lines {
			lines[i] = html.EscapeString(l)
		}

		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br/>"))
		b.WriteString("</p>\n")
	}
	return b.String()
}

func dataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// inlineImages replaces references to stored image IDs with data URIs.
func inlineImages(markup string, images []book.Image) string {
	for _, img := range images {
		markup = strings.ReplaceAll(markup, `src="`+img.ID+`"`, `src="`+dataURI(img.MediaType, img.Data)+`"`)
	}
	return markup
}
