package export

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brogergvhs/noveld/internal/book"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle() *book.Bundle {
	return &book.Bundle{
		Text: "intro\n\nOne\n\nauthor\n\nhello\n\nChapter 2 failed to download\n\n",
		Chapters: []book.BundleChapter{
			{
				Index:   0,
				Title:   "One & Only",
				Content: `<p>hello <b>world</b><br>line</p><script>alert(1)</script><p><img src="img_0_0.jpg" alt="pic"></p>`,
				Images:  []book.Image{{ID: "img_0_0.jpg", Data: []byte{0xff, 0xd8, 0xff}, MediaType: "image/jpeg"}},
			},
			{Index: 1, Title: "Chapter 2 (missing)", Content: "Content could not be downloaded.", Missing: true},
		},
		Meta: book.Metadata{
			Title:    "Book。1",
			RawTitle: "Book.1",
			Author:   "Writer",
			Cover:    &book.Cover{Data: bytes.Repeat([]byte{1}, 1200), Ext: "png", MediaType: "image/png"},
		},
	}
}

func readZip(t *testing.T, data []byte) (*zip.Reader, map[string]string) {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		files[f.Name] = string(b)
	}
	return zr, files
}

func TestParseFormats(t *testing.T) {
	fs, err := ParseFormats("txt, EPUB,txt")
	require.NoError(t, err)
	assert.Equal(t, []Format{TXT, EPUB}, fs)

	fs, err = ParseFormats("all")
	require.NoError(t, err)
	assert.Equal(t, All, fs)

	fs, err = ParseFormats("markdown")
	require.NoError(t, err)
	assert.Equal(t, []Format{Markdown}, fs)

	_, err = ParseFormats("pdf")
	assert.Error(t, err)

	_, err = ParseFormats(" , ")
	assert.Error(t, err)
}

func TestWriteTXT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTXT(&buf, sampleBundle()))
	assert.Equal(t, sampleBundle().Text, buf.String())
}

func TestEPUB_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEPUBBuilder(sampleBundle()).WriteTo(&buf))

	zr, files := readZip(t, buf.Bytes())

	require.NotEmpty(t, zr.File)
	assert.Equal(t, "mimetype", zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)
	assert.Equal(t, "application/epub+zip", files["mimetype"])

	assert.Contains(t, files["META-INF/container.xml"], `full-path="OEBPS/content.opf"`)

	opf := files["OEBPS/content.opf"]
	assert.Contains(t, opf, "<dc:title>Book.1</dc:title>")
	assert.Contains(t, opf, "<dc:creator>Writer</dc:creator>")
	assert.Contains(t, opf, "<dc:language>zh-CN</dc:language>")
	assert.Contains(t, opf, "urn:uuid:")
	assert.Contains(t, opf, `<meta name="cover" content="cover-image"/>`)
	assert.Contains(t, opf, `href="img_0_0.jpg" media-type="image/jpeg"`)
	assert.Contains(t, opf, `<itemref idref="chap_2"/>`)

	assert.Contains(t, files, "OEBPS/cover.png")
	assert.Contains(t, files, "OEBPS/img_0_0.jpg")

	ch1 := files["OEBPS/chap_1.xhtml"]
	assert.Contains(t, ch1, "<h2>One &amp; Only</h2>")
	assert.Contains(t, ch1, "<br/>")
	assert.Contains(t, ch1, `src="img_0_0.jpg"`)
	assert.NotContains(t, ch1, "<script")

	ch2 := files["OEBPS/chap_2.xhtml"]
	assert.Contains(t, ch2, "<p>Content could not be downloaded.</p>")

	nav := files["OEBPS/nav.xhtml"]
	assert.Contains(t, nav, `<a href="chap_1.xhtml">One &amp; Only</a>`)
	assert.Contains(t, nav, `<a href="chap_2.xhtml">Chapter 2 (missing)</a>`)
}

func TestWriteHTML_InlinesImages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleBundle()))
	out := buf.String()

	assert.Contains(t, out, "<title>Book.1</title>")
	assert.Contains(t, out, `src="data:image/jpeg;base64,/9j/"`)
	assert.Contains(t, out, `src="data:image/png;base64,`)
	assert.Contains(t, out, `<a href="#chap1">Chapter 2 (missing)</a>`)
	assert.Contains(t, out, `<div id="chap0" class="chapter">`)
	assert.NotContains(t, out, `src="img_0_0.jpg"`)
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, sampleBundle()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Book.1\n\nAuthor: Writer\n\n"))
	assert.Contains(t, out, "## One & Only")
	assert.Contains(t, out, "**world**")
	assert.Contains(t, out, "## Chapter 2 (missing)\n\nContent could not be downloaded.")
	assert.NotContains(t, out, "alert(1)")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteFile(filepath.Join(dir, "out"), sampleBundle(), TXT)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "Book。1.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleBundle().Text, string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestToXHTML(t *testing.T) {
	out := toXHTML(`<p onclick="x()">a<br>b</p><img src="img_1_0.png">`)
	assert.Contains(t, out, "<p>a<br/>b</p>")
	assert.Contains(t, out, `<img src="img_1_0.png"/>`)
	assert.NotContains(t, out, "onclick")

	assert.Equal(t, "<p>a &amp; b<br/>c</p>\n<p>d</p>\n", toXHTML("a & b\nc\n\nd"))
}
