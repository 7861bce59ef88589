package esj

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hbollon/go-edlib"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

var reManyNewlines = regexp.MustCompile(`\n{3,}`)

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Section: true, atom.Article: true,
}

// InnerText renders the visible text of sel, keeping line structure:
// <br> becomes a newline and block elements start on their own line.
func InnerText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(&b, c)
		}
	}

	lines := strings.Split(b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(strings.ReplaceAll(l, "\u00a0", " "))
	}

	out := strings.Join(lines, "\n")
	out = reManyNewlines.ReplaceAllString(out, "\n\n")

	return strings.TrimSpace(out)
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript:
		return
	case atom.Br:
		b.WriteString("\n")
		return
	}

	block := blockAtoms[n.DataAtom]
	if block {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteString("\n")
	}
}

// stripLeadingTitle drops a repeated chapter title from the top of text.
func stripLeadingTitle(text, title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return strings.TrimSpace(text)
	}

	trimmed := strings.TrimLeft(text, " \t\r\n")
	if len(trimmed) >= len(title) && strings.EqualFold(trimmed[:len(title)], title) {
		return strings.TrimSpace(strings.TrimLeft(trimmed[len(title):], " \t:："))
	}

	first, rest, found := strings.Cut(trimmed, "\n")
	if found && edlib.JaroWinklerSimilarity(strings.ToLower(strings.TrimSpace(first)), strings.ToLower(title)) >= 0.9 {
		return strings.TrimSpace(rest)
	}

	return strings.TrimSpace(trimmed)
}

var fileNameSymbols = map[rune]string{
	'\\': "-", '/': "- ", ':': "：", '*': "☆", '?': "？", '"': " ",
	'<': "《", '>': "》", '|': "-", '.': "。", '\t': " ", '\n': " ",
}

// SanitizeFileName maps characters that are unsafe in file names to
// visually close full-width replacements.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	for _, r := range name {
		if rep, ok := fileNameSymbols[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}

	return strings.TrimSpace(b.String())
}
