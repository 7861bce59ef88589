package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/brogergvhs/noveld/internal/book"
)

func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
}

// WriteMarkdown writes b as a single Markdown document. Stored images are
// embedded as data URIs so the file stands alone.
func WriteMarkdown(w io.Writer, b *book.Bundle) error {
	conv := newMarkdownConverter()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", bundleTitle(b))
	if b.Meta.Author != "" {
		fmt.Fprintf(&sb, "Author: %s\n\n", b.Meta.Author)
	}

	for _, ch := range b.Chapters {
		fmt.Fprintf(&sb, "## %s\n\n", chapterTitle(ch))

		body := ch.Content
		if !strings.Contains(body, "<") {
			sb.WriteString(strings.TrimSpace(body))
			sb.WriteString("\n\n")
			continue
		}

		md, err := conv.ConvertString(inlineImages(sanitize(body), ch.Images))
		if err != nil {
			return fmt.Errorf("chapter %d: %w", ch.Index+1, err)
		}
		sb.WriteString(strings.TrimSpace(md))
		sb.WriteString("\n\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
