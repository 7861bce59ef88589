// Package export turns an assembled book.Bundle into files.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/util"
)

// Format is an output file type.
type Format string

const (
	TXT      Format = "txt"
	EPUB     Format = "epub"
	HTML     Format = "html"
	Markdown Format = "md"
)

// All lists every format in the order they are written.
var All = []Format{TXT, EPUB, HTML, Markdown}

// ParseFormats parses a comma separated list such as "txt,epub" or "all".
// Duplicates are dropped.
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}

	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		var fs []Format
		switch part {
		case "all":
			fs = All
		case "txt", "text":
			fs = []Format{TXT}
		case "epub":
			fs = []Format{EPUB}
		case "html", "htm":
			fs = []Format{HTML}
		case "md", "markdown":
			fs = []Format{Markdown}
		default:
			return nil, fmt.Errorf("unknown format %q (valid: txt, epub, html, md, all)", part)
		}

		for _, f := range fs {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no output format given")
	}
	return out, nil
}

// Write serializes b in format f.
func Write(w io.Writer, b *book.Bundle, f Format) error {
	switch f {
	case TXT:
		return WriteTXT(w, b)
	case EPUB:
		return NewEPUBBuilder(b).WriteTo(w)
	case HTML:
		return WriteHTML(w, b)
	case Markdown:
		return WriteMarkdown(w, b)
	}
	return fmt.Errorf("unsupported format %q", f)
}

// FileName returns the output file name of b in format f.
func FileName(b *book.Bundle, f Format) string {
	name := strings.TrimSpace(b.Meta.Title)
	if name == "" {
		name = "book"
	}
	return name + "." + string(f)
}

// WriteFile writes b into dir and returns the created path. The data goes
// to a ".part" file first, renamed once complete.
func WriteFile(dir string, b *book.Bundle, f Format) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, FileName(b, f))
	tmp := path + util.PartSuffix

	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	bw := bufio.NewWriter(file)
	err = Write(bw, b, f)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", f, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// WriteTXT writes the plain-text concatenation of b.
func WriteTXT(w io.Writer, b *book.Bundle) error {
	_, err := io.WriteString(w, b.Text)
	return err
}
