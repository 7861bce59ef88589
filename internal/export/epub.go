package export

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/brogergvhs/noveld/internal/book"
)

// EPUBBuilder creates ePub 3.0 files from a bundle.
type EPUBBuilder struct {
	bundle   *book.Bundle
	id       string
	language string
	now      func() time.Time
}

func NewEPUBBuilder(b *book.Bundle) *EPUBBuilder {
	return &EPUBBuilder{
		bundle:   b,
		id:       "urn:uuid:" + uuid.New().String(),
		language: "zh-CN",
		now:      time.Now,
	}
}

type epubItem struct {
	id, href, mediaType, properties string
}

// WriteTo writes the epub archive to w.
func (e *EPUBBuilder) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)

	if err := e.write(zw); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func (e *EPUBBuilder) write(zw *zip.Writer) error {
	// mimetype must be first and uncompressed
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	if _, err := io.WriteString(mw, "application/epub+zip"); err != nil {
		return err
	}

	if err := writeEntry(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		return err
	}

	var manifest []epubItem
	var spine []string

	if c := e.bundle.Meta.Cover; c != nil {
		href := "cover." + c.Ext
		if err := writeEntry(zw, "OEBPS/"+href, c.Data); err != nil {
			return err
		}
		manifest = append(manifest, epubItem{"cover-image", href, c.MediaType, "cover-image"})
	}

	if err := writeEntry(zw, "OEBPS/style.css", []byte(epubStylesheet)); err != nil {
		return err
	}
	manifest = append(manifest, epubItem{"style", "style.css", "text/css", ""})

	seen := map[string]bool{}
	for i, ch := range e.bundle.Chapters {
		id := fmt.Sprintf("chap_%d", i+1)
		href := id + ".xhtml"

		if err := writeEntry(zw, "OEBPS/"+href, []byte(e.chapterXHTML(ch))); err != nil {
			return fmt.Errorf("failed to write chapter %d: %w", i+1, err)
		}
		manifest = append(manifest, epubItem{id, href, "application/xhtml+xml", ""})
		spine = append(spine, id)

		for _, img := range ch.Images {
			if seen[img.ID] {
				continue
			}
			seen[img.ID] = true

			if err := writeEntry(zw, "OEBPS/"+img.ID, img.Data); err != nil {
				return err
			}
			manifest = append(manifest, epubItem{"res_" + strings.ReplaceAll(img.ID, ".", "_"), img.ID, img.MediaType, ""})
		}
	}

	if err := writeEntry(zw, "OEBPS/nav.xhtml", []byte(e.navigation())); err != nil {
		return err
	}
	manifest = append(manifest, epubItem{"nav", "nav.xhtml", "application/xhtml+xml", "nav"})

	return writeEntry(zw, "OEBPS/content.opf", []byte(e.packageDocument(manifest, spine)))
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func chapterTitle(ch book.BundleChapter) string {
	if strings.TrimSpace(ch.Title) != "" {
		return ch.Title
	}
	return fmt.Sprintf("Chapter %d", ch.Index+1)
}

func (e *EPUBBuilder) chapterXHTML(ch book.BundleChapter) string {
	title := html.EscapeString(chapterTitle(ch))

	var sb strings.Builder
	sb.WriteString(xhtmlHeader)
	fmt.Fprintf(&sb, "<head><title>%s</title><link rel=\"stylesheet\" type=\"text/css\" href=\"style.css\"/></head>\n", title)
	sb.WriteString("<body>\n")
	fmt.Fprintf(&sb, "<h2>%s</h2>\n", title)
	sb.WriteString("<div>")
	sb.WriteString(toXHTML(ch.Content))
	sb.WriteString("</div>\n</body>\n</html>\n")

	return sb.String()
}

func (e *EPUBBuilder) navigation() string {
	var sb strings.Builder
	sb.WriteString(xhtmlHeader)
	sb.WriteString("<head><title>Contents</title></head>\n<body>\n<nav epub:type=\"toc\" id=\"toc\">\n<h1>Contents</h1>\n<ol>\n")

	for i, ch := range e.bundle.Chapters {
		fmt.Fprintf(&sb, "<li><a href=\"chap_%d.xhtml\">%s</a></li>\n", i+1, html.EscapeString(chapterTitle(ch)))
	}

	sb.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return sb.String()
}

func (e *EPUBBuilder) packageDocument(manifest []epubItem, spine []string) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	fmt.Fprintf(&sb, "    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", e.id)
	fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", html.EscapeString(bundleTitle(e.bundle)))
	fmt.Fprintf(&sb, "    <dc:language>%s</dc:language>\n", e.language)
	if a := e.bundle.Meta.Author; a != "" {
		fmt.Fprintf(&sb, "    <dc:creator>%s</dc:creator>\n", html.EscapeString(a))
	}

	now := e.now().UTC()
	fmt.Fprintf(&sb, "    <dc:date>%s</dc:date>\n", now.Format(time.RFC3339))
	fmt.Fprintf(&sb, "    <meta property=\"dcterms:modified\">%s</meta>\n", now.Format("2006-01-02T15:04:05Z"))
	if e.bundle.Meta.Cover != nil {
		sb.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}
	sb.WriteString("  </metadata>\n  <manifest>\n")

	for _, it := range manifest {
		props := ""
		if it.properties != "" {
			props = fmt.Sprintf(" properties=\"%s\"", it.properties)
		}
		fmt.Fprintf(&sb, "    <item id=\"%s\" href=\"%s\" media-type=\"%s\"%s/>\n",
			it.id, html.EscapeString(it.href), it.mediaType, props)
	}

	sb.WriteString("  </manifest>\n  <spine>\n")
	for _, id := range spine {
		fmt.Fprintf(&sb, "    <itemref idref=\"%s\"/>\n", id)
	}
	sb.WriteString("  </spine>\n</package>\n")

	return sb.String()
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const xhtmlHeader = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="zh-CN">
`

const epubStylesheet = `body {
  line-height: 1.6;
  margin: 1em;
}

h2 {
  text-align: center;
  margin: 1.5em 0 1em;
}

p {
  margin: 0.5em 0;
}

img {
  max-width: 100%;
  height: auto;
}
`
